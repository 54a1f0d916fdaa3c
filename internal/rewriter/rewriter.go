// Package rewriter turns stored news items into publication drafts through the language model.
package rewriter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

type Rewriter interface {
	Rewrite(ctx context.Context, item model.NewsItem, template model.RewriteTemplate) (model.Rewrite, error)
}

type ItemStorage interface {
	ItemByID(ctx context.Context, id int64) (*model.NewsItem, error)
	SaveRewrite(ctx context.Context, id int64, rewrite model.Rewrite) error
}

type Service struct {
	items ItemStorage
	llm   Rewriter
	now   func() time.Time
}

func New(items ItemStorage, llm Rewriter) *Service {
	return &Service{
		items: items,
		llm:   llm,
		now:   time.Now,
	}
}

// Rewrite переписывает статью и сохраняет результат поверх прошлого рерайта.
// Статус статьи не трогается, рерайт можно делать в любом статусе.
func (s *Service) Rewrite(ctx context.Context, id int64, template model.RewriteTemplate) (*model.NewsItem, error) {
	item, err := s.items.ItemByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rewrite, err := s.llm.Rewrite(ctx, *item, template)
	if err != nil {
		return nil, fmt.Errorf("rewrite item %d: %w", id, err)
	}
	rewrite.Template = template
	rewrite.RewrittenAt = s.now().UTC()

	if err := s.items.SaveRewrite(ctx, id, rewrite); err != nil {
		return nil, err
	}

	slog.Info("item rewritten", "id", id, "template", string(template))

	item.Rewrite = &rewrite
	return item, nil
}
