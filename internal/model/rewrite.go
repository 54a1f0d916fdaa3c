package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownTemplate = errors.New("unknown rewrite template")

// Шаблон рерайта статьи под площадку
type RewriteTemplate string

const (
	TemplateHotEvent      RewriteTemplate = "hot_event"
	TemplateSectorDepth   RewriteTemplate = "sector_depth"
	TemplateProductUpdate RewriteTemplate = "product_update"
	TemplateMediaReport   RewriteTemplate = "media_report"
)

var RewriteTemplates = []RewriteTemplate{
	TemplateHotEvent,
	TemplateSectorDepth,
	TemplateProductUpdate,
	TemplateMediaReport,
}

// ParseRewriteTemplate разбирает имя шаблона, пустое имя дает hot_event
func ParseRewriteTemplate(s string) (RewriteTemplate, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TemplateHotEvent, nil
	}

	for _, t := range RewriteTemplates {
		if string(t) == s {
			return t, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, s)
}

// Переписанная моделью статья. Content в markdown
type Rewrite struct {
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Template    RewriteTemplate `json:"template"`
	RewrittenAt time.Time       `json:"rewrittenAt"`
}
