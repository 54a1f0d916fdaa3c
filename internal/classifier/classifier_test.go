package classifier

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestClassifyTickers(t *testing.T) {
	got := Classify("Bitcoin rallies", "", nil)

	assert.Equal(t, []string{"BTC"}, got.Tickers)
	assert.Equal(t, TopicOther, got.Topic)
	assert.Equal(t, []string{"BTC"}, got.Tags)
}

func TestClassifyChineseKeywords(t *testing.T) {
	got := Classify("以太坊 升级", "", nil)

	assert.Equal(t, []string{"ETH"}, got.Tickers)
	assert.Equal(t, TopicTech, got.Topic)
}

func TestClassifyTopic(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "priority topic beats generic market", title: "Exchange hack sends price lower", want: TopicSecurity},
		{name: "fallback picks max matches", title: "Bitcoin price chart shows bull trend", want: TopicMarket},
		{name: "tie resolved by dictionary order", title: "exchange upgrade", want: TopicExchange},
		{name: "no keywords", title: "Weekly newsletter", want: TopicOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.title, "", nil).Topic)
		})
	}
}

func TestClassifyMergesCategories(t *testing.T) {
	got := Classify("Ethereum upgrade", "", []string{"Ethereum", "Tech", " "})

	assert.Equal(t, []string{"ETH"}, got.Tickers)
	assert.Equal(t, TopicTech, got.Topic)
	assert.Equal(t, []string{"ETH", "Tech", "Ethereum"}, got.Tags)
}
