package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/normalize"
)

// Статья в рерайте длиннее ответа классификатора
const (
	rewriteMaxTokens    = 4096
	rewriteContentLimit = 3000
)

const rewriteSystemPrompt = `You are a senior content editor at a crypto exchange.
Rewrite external news into an article for the exchange audience: informative, professional and engaging, with a clear structure.
Write in Russian, keep tickers, project and company names as is.
Answer with a JSON document {"title":"...","content":"..."} only, content is Markdown.`

var templateInstructions = map[model.RewriteTemplate]string{
	model.TemplateHotEvent: `Template: hot event.
1. What happened: the key points of the event.
2. Impact: effect on prices, the sector or the industry.
3. Action guide: risk reminders (volatility, leverage) and where the asset can be traded on the exchange.`,
	model.TemplateSectorDepth: `Template: sector deep dive.
1. Why the narrative is hot: technology, capital, macro.
2. Key tokens of the sector.
3. Opportunities: related assets listed on the exchange and a short watch list.`,
	model.TemplateProductUpdate: `Template: product update.
1. What changed: fees, features or campaign terms.
2. Who benefits: what new and existing users get, with an example.
3. Step by step call to action.`,
	model.TemplateMediaReport: `Template: media coverage.
1. Media view: the core assessment or ranking from the press.
2. Supporting numbers: trading volume, user base, licensing.
3. Summary that stresses reliability and security.`,
}

func buildRewritePrompt(item model.NewsItem, template model.RewriteTemplate) string {
	content := normalize.Excerpt(item.Content, item.URL, rewriteContentLimit)
	if content == "" {
		content = "no full text"
	}

	title := item.OriginalTitle
	if title == "" {
		title = item.Title
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the news below using the %s template.\n\n", template)
	fmt.Fprintf(&b, "Title: %s\nSummary: %s\nContent: %s\n\n", title, item.Summary, content)
	b.WriteString(templateInstructions[template])
	return b.String()
}

func parseRewrite(content string) (model.Rewrite, error) {
	content = cleanJSONResponse(content)

	var raw struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return model.Rewrite{}, fmt.Errorf("failed to parse rewrite: %w, content: %s", err, content)
	}

	rewrite := model.Rewrite{
		Title:   strings.TrimSpace(raw.Title),
		Content: strings.TrimSpace(raw.Content),
	}
	if rewrite.Title == "" || rewrite.Content == "" {
		return model.Rewrite{}, fmt.Errorf("empty rewrite, content: %s", content)
	}

	return rewrite, nil
}

func checkTemplate(template model.RewriteTemplate) error {
	if _, ok := templateInstructions[template]; !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownTemplate, template)
	}
	return nil
}

// Rewrite переписывает статью по шаблону. Время рерайта проставляет вызывающий
func (a *OpenAIAnalyzer) Rewrite(ctx context.Context, item model.NewsItem, template model.RewriteTemplate) (model.Rewrite, error) {
	if err := checkTemplate(template); err != nil {
		return model.Rewrite{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled {
		return model.Rewrite{}, model.ErrAnalyzerDisabled
	}

	if err := wait(ctx, a.limiter); err != nil {
		return model.Rewrite{}, err
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: rewriteSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildRewritePrompt(item, template),
			},
		},
		MaxTokens:   rewriteMaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return model.Rewrite{}, openAIError(err)
	}

	if len(resp.Choices) == 0 {
		return model.Rewrite{}, fmt.Errorf("no response from openai")
	}

	rewrite, err := parseRewrite(resp.Choices[0].Message.Content)
	if err != nil {
		return model.Rewrite{}, err
	}
	rewrite.Template = template

	return rewrite, nil
}

func (a *AnthropicAnalyzer) Rewrite(ctx context.Context, item model.NewsItem, template model.RewriteTemplate) (model.Rewrite, error) {
	if err := checkTemplate(template); err != nil {
		return model.Rewrite{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled {
		return model.Rewrite{}, model.ErrAnalyzerDisabled
	}

	if err := wait(ctx, a.limiter); err != nil {
		return model.Rewrite{}, err
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: rewriteMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: rewriteSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildRewritePrompt(item, template))),
		},
	})
	if err != nil {
		return model.Rewrite{}, anthropicError(err)
	}

	if len(resp.Content) == 0 {
		return model.Rewrite{}, fmt.Errorf("no response from anthropic")
	}

	rewrite, err := parseRewrite(resp.Content[0].Text)
	if err != nil {
		return model.Rewrite{}, err
	}
	rewrite.Template = template

	return rewrite, nil
}
