// Package normalize derives the identity of a feed item and its plain-text summary.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	SummaryLimit = 200
	// Выжимка длиннее этого порога получает многоточие
	ellipsisThreshold = 190
	ellipsis          = "..."
)

// Fingerprint считает хеш djb2 (вариант с xor) по ссылке и заголовку.
// Хеш идет по UTF-16 кодам, поэтому совпадает с уже сохраненными отпечатками.
func Fingerprint(link, title string) string {
	var hash uint32 = 5381
	for _, c := range utf16.Encode([]rune(link + title)) {
		hash = (hash * 33) ^ uint32(c)
	}
	return strconv.FormatUint(uint64(hash), 16)
}

var (
	tagPattern = regexp.MustCompile(`<[^>]*>?`)

	entities = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// StripHTML убирает теги и несколько самых частых html сущностей
func StripHTML(html string) string {
	if html == "" {
		return ""
	}
	return strings.TrimSpace(entities.Replace(tagPattern.ReplaceAllString(html, "")))
}

// Summary строит короткую текстовую выжимку из описания
func Summary(html string) string {
	text := []rune(StripHTML(html))
	if len(text) > SummaryLimit {
		text = text[:SummaryLimit]
	}

	summary := string(text)
	if len(text) > ellipsisThreshold {
		summary += ellipsis
	}
	return summary
}
