package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

const DefaultAnthropicModel = "claude-haiku-4-5"

type AnthropicAnalyzer struct {
	client    *anthropic.Client
	model     anthropic.Model
	prompt    string
	maxTokens int64
	limiter   *rate.Limiter
	enabled   bool
	mu        sync.Mutex
}

func NewAnthropicAnalyzer(opts Options) *AnthropicAnalyzer {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// Повторы по 429 делает движок обогащения, у sdk свои отключаем
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(reqOpts...)

	a := &AnthropicAnalyzer{
		client:    &client,
		model:     anthropic.Model(opts.Model),
		prompt:    promptOrDefault(opts.Prompt),
		maxTokens: int64(opts.MaxTokens),
		limiter:   newLimiter(opts.RequestsPerMinute),
		enabled:   opts.APIKey != "",
	}
	if a.model == "" {
		a.model = DefaultAnthropicModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = 2048
	}

	slog.Info("anthropic analyzer", "enabled", a.enabled, "model", string(a.model))

	return a
}

func (a *AnthropicAnalyzer) Analyze(ctx context.Context, inputs []model.AnalysisInput) ([]model.AnalysisResult, error) {
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

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: a.prompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserPrompt(inputs))),
		},
	})
	if err != nil {
		return nil, anthropicError(err)
	}

	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("no response from anthropic")
	}

	return parseResults(resp.Content[0].Text, len(inputs))
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", model.ErrRateLimited, err)
	}

	return fmt.Errorf("anthropic API error: %w", err)
}
