// Package analyzer implements the batch classification call against language model vendors.
package analyzer

import (
	"fmt"
	"strings"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

// Промпт по умолчанию, в конфиге его можно переопределить
const DefaultPrompt = `You are a crypto news analyst. You receive a numbered list of news items.
For every item return an object in a JSON document of the form
{"results":[{"index":0,"isCryptoRelated":true,"translatedTitle":"...","language":"en","sentiment":"positive|negative|neutral","riskLevel":"low|medium|high","qualityScore":0,"entities":{"projects":[],"institutions":[],"events":[]}}]}
Rules:
- index is the number of the item in the list.
- translatedTitle is the title translated to Russian, keep tickers and names as is.
- language is the ISO 639-1 code of the original title.
- qualityScore is 0-100, low for ads, press releases, price spam and duplicates.
- isCryptoRelated is false for news that are not about crypto, blockchain or digital assets.
Answer with the JSON document only.`

func buildUserPrompt(inputs []model.AnalysisInput) string {
	var b strings.Builder
	for i, in := range inputs {
		fmt.Fprintf(&b, "[%d]\nSource: %s\nTitle: %s\nExcerpt: %s\n\n", i, in.SourceName, in.Title, in.Excerpt)
	}
	return strings.TrimSpace(b.String())
}

func promptOrDefault(prompt string) string {
	if strings.TrimSpace(prompt) == "" {
		return DefaultPrompt
	}
	return prompt
}
