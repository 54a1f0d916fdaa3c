package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

type fakeArticles struct {
	items  []model.NewsItem
	since  time.Time
	posted []int64
}

func (f *fakeArticles) AllNotPosted(_ context.Context, since time.Time, limit uint64) ([]model.NewsItem, error) {
	f.since = since
	var out []model.NewsItem
	for _, item := range f.items {
		if uint64(len(out)) == limit {
			break
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeArticles) MarkPosted(_ context.Context, id int64) error {
	f.posted = append(f.posted, id)
	f.items = f.items[1:]
	return nil
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func completedItem(id int64) model.NewsItem {
	return model.NewsItem{
		ID:            id,
		Title:         "Биткоин обновил максимум",
		OriginalTitle: "Bitcoin hits new high",
		URL:           "https://example.com/btc-high",
		SourceName:    "Example",
		Content:       "<p>Bitcoin rallied past its previous record.</p>",
		CoinTickers:   []string{"BTC"},
		TopicCategory: "Market",
		Status:        model.StatusCompleted,
		Analysis: &model.Analysis{
			Sentiment:    model.SentimentPositive,
			RiskLevel:    model.RiskLow,
			QualityScore: 85,
		},
	}
}

func TestSelectAndSendArticle(t *testing.T) {
	articles := &fakeArticles{items: []model.NewsItem{completedItem(7), completedItem(8)}}
	sender := &fakeSender{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	n := New(articles, sender, time.Minute, 24*time.Hour, -100500)
	n.now = func() time.Time { return now }

	sent, err := n.SelectAndSendArticle(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, true, sent)
	assert.Equal(t, now.Add(-24*time.Hour), articles.since)
	assert.Equal(t, []int64{7}, articles.posted)

	assert.Equal(t, 1, len(sender.sent))
	msg := sender.sent[0]
	assert.Equal(t, int64(-100500), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, msg.ParseMode)
}

func TestSelectAndSendArticleNothingToPost(t *testing.T) {
	sender := &fakeSender{}
	n := New(&fakeArticles{}, sender, time.Minute, time.Hour, 1)

	sent, err := n.SelectAndSendArticle(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, false, sent)
	assert.Equal(t, 0, len(sender.sent))
}

func TestSendFailureKeepsArticleUnposted(t *testing.T) {
	articles := &fakeArticles{items: []model.NewsItem{completedItem(7)}}
	n := New(articles, &fakeSender{err: errors.New("telegram down")}, time.Minute, time.Hour, 1)

	sent, err := n.SelectAndSendArticle(context.Background())
	assert.NotEqual(t, nil, err)
	assert.Equal(t, false, sent)
	assert.Equal(t, 0, len(articles.posted))
}

func TestFormatArticle(t *testing.T) {
	text := FormatArticle(completedItem(1))

	assert.Equal(t, true, strings.HasPrefix(text, "*Биткоин обновил максимум*"))
	assert.Equal(t, true, strings.Contains(text, "positive"))
	assert.Equal(t, true, strings.Contains(text, `\#BTC`))
	assert.Equal(t, true, strings.Contains(text, "Bitcoin rallied"))
	assert.Equal(t, true, strings.HasSuffix(text, `https://example\.com/btc\-high`))
}

func TestFormatArticleFallsBackToSummary(t *testing.T) {
	item := completedItem(1)
	item.Content = ""
	item.Summary = "Short summary"
	item.Analysis = nil

	text := FormatArticle(item)
	assert.Equal(t, true, strings.Contains(text, "Short summary"))
	assert.Equal(t, false, strings.Contains(text, "risk"))
}
