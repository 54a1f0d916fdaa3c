package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
	"github.com/kovalyov-valentin/crypto-intel/internal/botkit/markup"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

type SourceLister interface {
	Sources(ctx context.Context) ([]model.Source, error)
}

func ViewCmdListSources(lister SourceLister) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		sources, err := lister.Sources(ctx)
		if err != nil {
			return err
		}

		var (
			// Складываем в нее сформатированные тексты с метаинформацией об источниках
			sourceInfos = lo.Map(sources, func(source model.Source, _ int) string {
				return formatSource(source)
			})
			msgText = fmt.Sprintf(
				"Список источников \\(всего %d\\):\n\n%s",
				len(sources),
				strings.Join(sourceInfos, "\n\n"),
			)
		)

		return botkit.Reply(bot, update, msgText)
	}
}

// Вывод форматированной информации об источнике
func formatSource(source model.Source) string {
	icon := "🌐"
	switch {
	case !source.Enabled:
		icon = "⏸"
	case source.Health.Status == model.HealthError:
		icon = "❌"
	case source.Health.Status == model.HealthOK:
		icon = "✅"
	}

	checked := "не проверялся"
	if !source.Health.LastCheckAt.IsZero() {
		checked = "проверен " + humanize.Time(source.Health.LastCheckAt)
	}

	text := fmt.Sprintf(
		"%s %s\nID: %s\nURL фида: %s\n%s",
		icon,
		markup.Bold(source.Name),
		markup.Code(source.ID),
		markup.EscapeForMarkdown(source.FeedURL),
		markup.EscapeForMarkdown(checked),
	)
	if source.Health.LastError != "" {
		text += "\n" + markup.EscapeForMarkdown("Ошибка: "+source.Health.LastError)
	}

	return text
}
