package source

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/SlyMarbo/rss"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

// Форматы dc:date и прочих нестандартных дат, которые встречаются в лентах
var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse разбирает RSS item и Atom entry.
// Битые элементы (без заголовка или ссылки) молча отбрасываются.
func Parse(body []byte, sourceName string, now time.Time) ([]model.Item, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		// gofeed строже к разметке, пробуем вторым парсером
		items, fallbackErr := parseFallback(body, sourceName, now)
		if fallbackErr != nil {
			return nil, fmt.Errorf("parse feed: %w", err)
		}
		return items, nil
	}

	var items []model.Item
	for _, it := range feed.Items {
		if it == nil {
			continue
		}

		item := model.Item{
			Title:       strings.TrimSpace(it.Title),
			Link:        itemLink(it),
			Date:        itemDate(it, now),
			Content:     longest(it.Content, it.Description),
			Description: lo.Ternary(it.Description != "", it.Description, it.Content),
			Categories:  cleanCategories(it.Categories),
			SourceName:  sourceName,
		}

		if item.Title == "" || item.Link == "" {
			continue
		}

		items = append(items, item)
	}

	return items, nil
}

func parseFallback(body []byte, sourceName string, now time.Time) ([]model.Item, error) {
	feed, err := rss.Parse(body)
	if err != nil {
		return nil, err
	}

	var items []model.Item
	for _, it := range feed.Items {
		if it == nil {
			continue
		}

		item := model.Item{
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Date:        lo.Ternary(it.Date.IsZero(), now, it.Date),
			Content:     longest(it.Content, it.Summary),
			Description: lo.Ternary(it.Summary != "", it.Summary, it.Content),
			Categories:  cleanCategories(it.Categories),
			SourceName:  sourceName,
		}

		if item.Title == "" || item.Link == "" {
			continue
		}

		items = append(items, item)
	}

	return items, nil
}

func itemLink(it *gofeed.Item) string {
	if link := strings.TrimSpace(it.Link); link != "" {
		return link
	}

	// У Atom ссылка бывает только в атрибуте href
	for _, link := range it.Links {
		if link = strings.TrimSpace(link); link != "" {
			return link
		}
	}

	return ""
}

// Берется первое непустое поле даты, если его не удалось разобрать то текущее время
func itemDate(it *gofeed.Item, now time.Time) time.Time {
	switch {
	case it.Published != "":
		return parsedOr(it.PublishedParsed, it.Published, now)
	case it.Updated != "":
		return parsedOr(it.UpdatedParsed, it.Updated, now)
	case it.DublinCoreExt != nil && len(it.DublinCoreExt.Date) > 0:
		return parsedOr(nil, it.DublinCoreExt.Date[0], now)
	default:
		return now
	}
}

func parsedOr(parsed *time.Time, raw string, now time.Time) time.Time {
	if parsed != nil && !parsed.IsZero() {
		return *parsed
	}

	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}

	return now
}

// Из вариантов контента выбирается самый длинный, склеивать их нельзя
func longest(candidates ...string) string {
	var best string
	for _, c := range candidates {
		if utf8.RuneCountInString(c) > utf8.RuneCountInString(best) {
			best = c
		}
	}
	return best
}

func cleanCategories(categories []string) []string {
	return lo.FilterMap(categories, func(c string, _ int) (string, bool) {
		c = strings.TrimSpace(c)
		return c, c != ""
	})
}
