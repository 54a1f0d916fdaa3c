package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

type rawResult struct {
	Index           int            `json:"index"`
	IsCryptoRelated bool           `json:"isCryptoRelated"`
	TranslatedTitle string         `json:"translatedTitle"`
	Language        string         `json:"language"`
	Sentiment       string         `json:"sentiment"`
	RiskLevel       string         `json:"riskLevel"`
	QualityScore    float64        `json:"qualityScore"`
	Entities        model.Entities `json:"entities"`
}

// parseResults разбирает ответ модели и раскладывает результаты по номерам статей.
// Статья без результата получает свою ошибку, остальные от этого не страдают.
func parseResults(content string, n int) ([]model.AnalysisResult, error) {
	content = cleanJSONResponse(content)

	var envelope struct {
		Results []rawResult `json:"results"`
	}
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), &envelope.Results); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w, content: %s", err, content)
		}
	} else if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, content: %s", err, content)
	}

	byIndex := lo.Associate(envelope.Results, func(r rawResult) (int, rawResult) {
		return r.Index, r
	})

	results := make([]model.AnalysisResult, n)
	for i := range results {
		raw, ok := byIndex[i]
		if !ok {
			results[i].Err = fmt.Errorf("no result for item %d", i)
			continue
		}

		analysis := model.Analysis{
			TranslatedTitle: strings.TrimSpace(raw.TranslatedTitle),
			Sentiment:       model.Sentiment(strings.ToLower(raw.Sentiment)),
			QualityScore:    int(raw.QualityScore),
			RiskLevel:       model.RiskLevel(strings.ToLower(raw.RiskLevel)),
			Language:        strings.ToLower(strings.TrimSpace(raw.Language)),
			IsCryptoRelated: raw.IsCryptoRelated,
			Entities:        raw.Entities,
		}
		analysis.Normalize()
		results[i].Analysis = &analysis
	}

	return results, nil
}

// Модели любят оборачивать json в markdown или дописывать пояснения
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "[") {
		return content
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
