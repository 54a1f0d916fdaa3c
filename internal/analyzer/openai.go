package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

const DefaultOpenAIModel = "gpt-4o-mini"

type Options struct {
	APIKey string
	Model  string
	// Пустой адрес означает адрес вендора по умолчанию
	BaseURL           string
	Prompt            string
	RequestsPerMinute int
	MaxTokens         int
}

// Анализатор поверх OpenAI, один запрос на пачку статей
type OpenAIAnalyzer struct {
	client    *openai.Client
	model     string
	prompt    string
	maxTokens int
	limiter   *rate.Limiter
	// Флаг вкл/выкл анализатора, без ключа анализ не делается
	enabled bool
	mu      sync.Mutex
}

func NewOpenAIAnalyzer(opts Options) *OpenAIAnalyzer {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	a := &OpenAIAnalyzer{
		client:    openai.NewClientWithConfig(cfg),
		model:     opts.Model,
		prompt:    promptOrDefault(opts.Prompt),
		maxTokens: opts.MaxTokens,
		limiter:   newLimiter(opts.RequestsPerMinute),
		enabled:   opts.APIKey != "",
	}
	if a.model == "" {
		a.model = DefaultOpenAIModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = 2048
	}

	slog.Info("openai analyzer", "enabled", a.enabled, "model", a.model)

	return a
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, inputs []model.AnalysisInput) ([]model.AnalysisResult, error) {
	// Запросы идут строго по одному
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled {
		return nil, model.ErrAnalyzerDisabled
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	if err := wait(ctx, a.limiter); err != nil {
		return nil, err
	}

	request := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: a.prompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(inputs),
			},
		},
		MaxTokens:   a.maxTokens,
		Temperature: 0.2,
	}

	resp, err := a.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, openAIError(err)
	}

	// openai может прислать несколько вариантов, берем первый
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	return parseResults(resp.Choices[0].Message.Content, len(inputs))
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", model.ErrRateLimited, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", model.ErrRateLimited, err)
	}

	return fmt.Errorf("openai API error: %w", err)
}
