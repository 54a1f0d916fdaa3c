package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
	"github.com/kovalyov-valentin/crypto-intel/internal/botkit/markup"
	"github.com/kovalyov-valentin/crypto-intel/internal/fetcher"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

type Collector interface {
	Fetch(ctx context.Context, cutoff model.Cutoff) (fetcher.Report, error)
}

// ViewCmdFetch делает один проход по источникам. Без аргумента используется окно по умолчанию
func ViewCmdFetch(collector Collector, defaultCutoff model.Cutoff) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		cutoff := defaultCutoff
		if args := botkit.Fields(update); len(args) > 0 {
			parsed, err := model.ParseCutoff(args[0])
			if err != nil {
				return botkit.ReplyText(bot, update, err.Error())
			}
			cutoff = parsed
		}

		report, err := collector.Fetch(ctx, cutoff)
		if err != nil {
			return err
		}

		return botkit.Reply(bot, update, formatReport(report, cutoff))
	}
}

func formatReport(report fetcher.Report, cutoff model.Cutoff) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Сбор завершен, окно %s\n", markup.Code(string(cutoff)))
	fmt.Fprintf(&b, "Новых статей: *%d* из %d, источников с ошибкой: %d\n",
		report.Inserted, report.Attempted, report.Failed())

	for _, s := range report.Sources {
		if s.Failed() {
			fmt.Fprintf(&b, "\n❌ %s: %s", markup.Bold(s.Name), markup.EscapeForMarkdown(s.Error))
			continue
		}
		fmt.Fprintf(&b, "\n✅ %s: %d новых", markup.Bold(s.Name), s.Stored)
	}

	return b.String()
}
