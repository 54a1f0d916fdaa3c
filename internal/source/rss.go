package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

var ErrFeedEmpty = errors.New("feed empty")

// RSS клиент.
type RSSSource struct {
	// URL откуда мы забираем данные
	URL        string
	SourceID   string
	SourceName string

	retriever *Retriever
	now       func() time.Time
}

// Из модели источника делаем клиент для RSS ленты
func NewRSSSourceFromModel(m model.Source, retriever *Retriever) RSSSource {
	return RSSSource{
		URL:        m.FeedURL,
		SourceID:   m.ID,
		SourceName: m.Name,
		retriever:  retriever,
		now:        time.Now,
	}
}

// Fetch возвращает кандидатов из ленты или ошибку на весь источник
func (s RSSSource) Fetch(ctx context.Context) ([]model.Item, error) {
	if s.retriever == nil {
		return nil, errors.New("source has no retriever")
	}

	body, err := s.retriever.Retrieve(ctx, s.URL)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}

	items, err := Parse(body, s.SourceName, now())
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (s RSSSource) ID() string {
	return s.SourceID
}

func (s RSSSource) Name() string {
	return s.SourceName
}

// Test проверяет что лента доступна и в ней есть статьи.
// Ничего не сохраняет, возвращает число элементов.
func Test(ctx context.Context, retriever *Retriever, feedURL string) (int, error) {
	src := RSSSource{URL: feedURL, SourceName: feedURL, retriever: retriever}

	items, err := src.Fetch(ctx)
	if err != nil {
		return 0, err
	}

	if len(items) == 0 {
		return 0, fmt.Errorf("test %s: %w", feedURL, ErrFeedEmpty)
	}

	return len(items), nil
}
