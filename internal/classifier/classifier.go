// Package classifier tags feed items with coin tickers and a topic using keyword dictionaries.
package classifier

import (
	"strings"

	"github.com/samber/lo"
	"github.com/tomakado/containers/set"
)

type Result struct {
	Tickers []string
	Topic   string
	Tags    []string
}

// Classify размечает статью по заголовку, выжимке и категориям источника.
// Функция чистая, сети и хранилища не касается.
func Classify(title, summary string, categories []string) Result {
	text := strings.ToLower(strings.Join(append([]string{title, summary}, categories...), " "))

	var (
		tickers = matchTickers(text)
		topic   = matchTopic(text)
		tags    = append([]string{}, tickers...)
	)

	if topic != TopicOther {
		tags = append(tags, topic)
	}

	// Категории источника добавляются как есть
	tags = append(tags, lo.Filter(categories, func(c string, _ int) bool {
		return strings.TrimSpace(c) != ""
	})...)

	return Result{
		Tickers: tickers,
		Topic:   topic,
		Tags:    lo.Uniq(tags),
	}
}

func matchTickers(text string) []string {
	var tickers []string
	for _, coin := range coinKeywords {
		if countMatches(text, coin.Keywords) > 0 {
			tickers = append(tickers, coin.Name)
		}
	}
	return tickers
}

func matchTopic(text string) string {
	priority := set.New(priorityTopics...)

	for _, name := range priorityTopics {
		topic, _ := lo.Find(topicKeywords, func(e entry) bool { return e.Name == name })
		if countMatches(text, topic.Keywords) > 0 {
			return name
		}
	}

	// Если специфичных тем нет, берем тему с максимальным числом совпадений.
	// При равенстве побеждает та, что раньше в словаре.
	best, bestMatches := TopicOther, 0
	for _, topic := range topicKeywords {
		if priority.Contains(topic.Name) {
			continue
		}
		if matches := countMatches(text, topic.Keywords); matches > bestMatches {
			best, bestMatches = topic.Name, matches
		}
	}

	return best
}

func countMatches(text string, keywords []string) int {
	return lo.CountBy(keywords, func(k string) bool {
		return strings.Contains(text, strings.ToLower(k))
	})
}
