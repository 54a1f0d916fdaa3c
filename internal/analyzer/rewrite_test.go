package analyzer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

const rewriteAnswer = "```json\n" + `{"title":"ETF одобрен: что дальше","content":"## Что случилось\nSEC одобрила ETF."}` + "\n```"

var rewriteItem = model.NewsItem{
	ID:            1,
	Title:         "ETF одобрен",
	OriginalTitle: "SEC approves spot ETF",
	URL:           "https://example.com/etf",
	Summary:       "The SEC approved a spot ETF.",
	Content:       "<p>The SEC approved a spot bitcoin ETF on Wednesday.</p>",
}

func TestBuildRewritePrompt(t *testing.T) {
	prompt := buildRewritePrompt(rewriteItem, model.TemplateSectorDepth)

	assert.Equal(t, true, strings.Contains(prompt, "sector_depth template"))
	assert.Equal(t, true, strings.Contains(prompt, "Title: SEC approves spot ETF"))
	assert.Equal(t, true, strings.Contains(prompt, "approved a spot bitcoin ETF"))
	assert.Equal(t, true, strings.Contains(prompt, "Key tokens of the sector"))
}

func TestParseRewrite(t *testing.T) {
	rewrite, err := parseRewrite(rewriteAnswer)
	assert.Equal(t, nil, err)
	assert.Equal(t, "ETF одобрен: что дальше", rewrite.Title)
	assert.Equal(t, "## Что случилось\nSEC одобрила ETF.", rewrite.Content)

	_, err = parseRewrite(`{"title":"only title"}`)
	assert.NotEqual(t, nil, err)

	_, err = parseRewrite("no json at all")
	assert.NotEqual(t, nil, err)
}

func TestRewriteChecksTemplateAndKey(t *testing.T) {
	_, err := NewOpenAIAnalyzer(Options{APIKey: "key"}).Rewrite(context.Background(), rewriteItem, "clickbait")
	assert.Equal(t, true, errors.Is(err, model.ErrUnknownTemplate))

	_, err = NewOpenAIAnalyzer(Options{}).Rewrite(context.Background(), rewriteItem, model.TemplateHotEvent)
	assert.Equal(t, true, errors.Is(err, model.ErrAnalyzerDisabled))

	_, err = NewAnthropicAnalyzer(Options{}).Rewrite(context.Background(), rewriteItem, model.TemplateHotEvent)
	assert.Equal(t, true, errors.Is(err, model.ErrAnalyzerDisabled))
}

func TestOpenAIRewrite(t *testing.T) {
	srv := openAIServer(t, http.StatusOK, map[string]any{
		"id":      "chatcmpl-2",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": rewriteAnswer},
			"finish_reason": "stop",
		}},
	})
	defer srv.Close()

	a := NewOpenAIAnalyzer(Options{APIKey: "key", BaseURL: srv.URL + "/v1"})

	rewrite, err := a.Rewrite(context.Background(), rewriteItem, model.TemplateMediaReport)
	assert.Equal(t, nil, err)
	assert.Equal(t, "ETF одобрен: что дальше", rewrite.Title)
	assert.Equal(t, model.TemplateMediaReport, rewrite.Template)
}

func TestOpenAIRewriteRateLimit(t *testing.T) {
	srv := openAIServer(t, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"message": "Rate limit reached", "type": "requests"},
	})
	defer srv.Close()

	a := NewOpenAIAnalyzer(Options{APIKey: "key", BaseURL: srv.URL + "/v1"})

	_, err := a.Rewrite(context.Background(), rewriteItem, model.TemplateHotEvent)
	assert.Equal(t, true, errors.Is(err, model.ErrRateLimited))
}

func TestAnthropicRewrite(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, map[string]any{
		"id":            "msg_2",
		"type":          "message",
		"role":          "assistant",
		"model":         DefaultAnthropicModel,
		"content":       []map[string]string{{"type": "text", "text": rewriteAnswer}},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]int{"input_tokens": 10, "output_tokens": 20},
	})
	defer srv.Close()

	a := NewAnthropicAnalyzer(Options{APIKey: "key", BaseURL: srv.URL})

	rewrite, err := a.Rewrite(context.Background(), rewriteItem, model.TemplateProductUpdate)
	assert.Equal(t, nil, err)
	assert.Equal(t, model.TemplateProductUpdate, rewrite.Template)
	assert.Equal(t, true, strings.HasPrefix(rewrite.Content, "## Что случилось"))
}
