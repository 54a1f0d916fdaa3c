package normalize

import (
	nurl "net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

// Excerpt возвращает начало читаемого текста статьи без разметки и переносов строк.
// Сначала текст достает readability, если не вышло, просто вырезаем теги.
func Excerpt(html, pageURL string, limit int) string {
	text := readableText(html, pageURL)
	if text == "" {
		text = StripHTML(html)
	}

	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}

func readableText(html, pageURL string) string {
	// В простом тексте извлекать нечего
	if !strings.Contains(html, "<") {
		return ""
	}

	var base *nurl.URL
	if u, err := nurl.Parse(pageURL); err == nil && u.IsAbs() {
		base = u
	}

	doc, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return ""
	}

	return doc.TextContent
}
