package model

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusSkipped, StatusFailed} {
		parsed, err := ParseStatus(s.String())
		assert.Equal(t, nil, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseStatus("DONE")
	assert.Equal(t, true, errors.Is(err, ErrUnknownStatus))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusSkipped, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, true},
		{StatusCompleted, StatusPending, false},
		{StatusSkipped, StatusProcessing, false},
		{StatusFailed, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestResolve(t *testing.T) {
	low := Resolve(1, Analysis{IsCryptoRelated: true, QualityScore: 10, TranslatedTitle: "перевод"}, 30)
	assert.Equal(t, StatusSkipped, low.To)
	assert.Equal(t, "", low.Title)
	assert.NotEqual(t, nil, low.Analysis)

	unrelated := Resolve(1, Analysis{IsCryptoRelated: false, QualityScore: 90}, 30)
	assert.Equal(t, StatusSkipped, unrelated.To)

	good := Resolve(1, Analysis{IsCryptoRelated: true, QualityScore: 30, TranslatedTitle: " Биткоин растет "}, 30)
	assert.Equal(t, StatusCompleted, good.To)
	assert.Equal(t, "Биткоин растет", good.Title)
	assert.Equal(t, nil, good.Validate())
}

func TestTransitionValidate(t *testing.T) {
	bad := Transition{ItemID: 1, From: StatusPending, To: StatusCompleted}
	assert.Equal(t, true, errors.Is(bad.Validate(), ErrIllegalTransition))

	payloadOnFail := Transition{ItemID: 1, From: StatusProcessing, To: StatusFailed, Analysis: &Analysis{}}
	assert.Equal(t, true, errors.Is(payloadOnFail.Validate(), ErrIllegalTransition))

	assert.Equal(t, nil, Claim(1).Validate())
	assert.Equal(t, nil, Release(1).Validate())
	assert.Equal(t, nil, Fail(1).Validate())
}

func TestAnalysisNormalize(t *testing.T) {
	a := Analysis{Sentiment: "bullish", RiskLevel: "", QualityScore: 140}
	a.Normalize()
	assert.Equal(t, SentimentNeutral, a.Sentiment)
	assert.Equal(t, RiskLow, a.RiskLevel)
	assert.Equal(t, 100, a.QualityScore)
}

func TestCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	c, err := ParseCutoff("24H")
	assert.Equal(t, nil, err)
	assert.Equal(t, Cutoff24h, c)
	assert.Equal(t, true, c.Admits(now.Add(-23*time.Hour), now))
	assert.Equal(t, false, c.Admits(now.Add(-25*time.Hour), now))

	none, err := ParseCutoff("")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, none.Admits(now.AddDate(-5, 0, 0), now))

	three, _ := ParseCutoff("3d")
	assert.Equal(t, false, three.Admits(now.Add(-73*time.Hour), now))

	_, err = ParseCutoff("week")
	assert.NotEqual(t, nil, err)
}
