package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
	"github.com/kovalyov-valentin/crypto-intel/internal/enricher"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

type Enricher interface {
	Start(ctx context.Context) (*enricher.Session, error)
	Cancel() bool
	Active() *enricher.Session
}

type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
}

// ViewCmdAnalyze запускает прогон в фоне. Прогон живет в runCtx, а не в контексте апдейта
func ViewCmdAnalyze(runCtx context.Context, engine Enricher) botkit.ViewFunc {
	return func(_ context.Context, bot botkit.API, update tgbotapi.Update) error {
		session, err := engine.Start(runCtx)
		switch {
		case errors.Is(err, enricher.ErrBusy):
			return botkit.ReplyText(bot, update, "Анализ уже идет, /progress покажет состояние")
		case err != nil:
			return err
		}

		return botkit.ReplyText(bot, update, fmt.Sprintf("Анализ запущен, сессия %s", session.ID()))
	}
}

func ViewCmdCancel(engine Enricher) botkit.ViewFunc {
	return func(_ context.Context, bot botkit.API, update tgbotapi.Update) error {
		if !engine.Cancel() {
			return botkit.ReplyText(bot, update, "Анализ не запущен")
		}
		return botkit.ReplyText(bot, update, "Анализ остановится после текущей пачки")
	}
}

func ViewCmdProgress(engine Enricher, counter StatusCounter) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		counts, err := counter.CountByStatus(ctx)
		if err != nil {
			return err
		}

		var b strings.Builder

		if session := engine.Active(); session != nil {
			p := session.Progress()
			state := "завершен"
			switch {
			case p.Running:
				state = "идет"
			case p.Cancelled:
				state = "отменен"
			}
			fmt.Fprintf(&b, "Анализ %s: обработано %d из %d (готово %d, пропущено %d, ошибок %d)\n",
				state, p.Processed, p.Total, p.Completed, p.Skipped, p.Failed)
			if p.Error != "" {
				fmt.Fprintf(&b, "Ошибка: %s\n", p.Error)
			}
		} else {
			b.WriteString("Анализ еще не запускался\n")
		}

		for _, status := range []model.Status{
			model.StatusPending,
			model.StatusProcessing,
			model.StatusCompleted,
			model.StatusSkipped,
			model.StatusFailed,
		} {
			fmt.Fprintf(&b, "\n%s: %d", status, counts[status])
		}

		return botkit.ReplyText(bot, update, b.String())
	}
}
