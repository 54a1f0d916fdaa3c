package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
	"github.com/kovalyov-valentin/crypto-intel/internal/botkit/markup"
	"github.com/kovalyov-valentin/crypto-intel/internal/fetcher"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/storage"
)

type SourceStorage interface {
	SourceByID(ctx context.Context, id string) (*model.Source, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
}

type SourceTester interface {
	TestSource(ctx context.Context, id string) (fetcher.TestResult, error)
	RetryFailed(ctx context.Context) ([]fetcher.TestResult, error)
	TestAll(ctx context.Context) ([]fetcher.TestResult, error)
}

// sourceView достает id источника из аргументов и отвечает сам, если источника нет
func sourceView(next func(ctx context.Context, bot botkit.API, update tgbotapi.Update, id string) error) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		args := botkit.Fields(update)
		if len(args) == 0 {
			return botkit.ReplyText(bot, update, "Укажите ID источника")
		}

		err := next(ctx, bot, update, args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return botkit.ReplyText(bot, update, "Источник не найден")
		}
		return err
	}
}

func ViewCmdTestSource(tester SourceTester) botkit.ViewFunc {
	return sourceView(func(ctx context.Context, bot botkit.API, update tgbotapi.Update, id string) error {
		result, err := tester.TestSource(ctx, id)
		if err != nil {
			return err
		}

		return botkit.Reply(bot, update, markup.Bold(result.Name)+"\n"+formatTestResult(result))
	})
}

func ViewCmdToggleSource(sources SourceStorage) botkit.ViewFunc {
	return sourceView(func(ctx context.Context, bot botkit.API, update tgbotapi.Update, id string) error {
		source, err := sources.SourceByID(ctx, id)
		if err != nil {
			return err
		}

		if err := sources.SetEnabled(ctx, id, !source.Enabled); err != nil {
			return err
		}

		state := lo.Ternary(source.Enabled, "выключен", "включен")
		return botkit.ReplyText(bot, update, fmt.Sprintf("Источник %s %s", source.Name, state))
	})
}

func ViewCmdDeleteSource(sources SourceStorage) botkit.ViewFunc {
	return sourceView(func(ctx context.Context, bot botkit.API, update tgbotapi.Update, id string) error {
		if err := sources.Delete(ctx, id); err != nil {
			return err
		}

		return botkit.ReplyText(bot, update, "Источник удален")
	})
}

func ViewCmdRetrySources(tester SourceTester) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		results, err := tester.RetryFailed(ctx)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return botkit.ReplyText(bot, update, "Упавших источников нет")
		}

		return botkit.Reply(bot, update, formatTestResults(results))
	}
}

// ViewCmdTestAllSources проверяет все источники, включая выключенные
func ViewCmdTestAllSources(tester SourceTester) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		results, err := tester.TestAll(ctx)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return botkit.ReplyText(bot, update, "Источников нет")
		}

		failed := lo.CountBy(results, func(r fetcher.TestResult) bool { return !r.OK })
		header := markup.EscapeForMarkdown(fmt.Sprintf("Проверено: %d, с ошибкой: %d", len(results), failed))

		return botkit.Reply(bot, update, header+"\n\n"+formatTestResults(results))
	}
}

func formatTestResults(results []fetcher.TestResult) string {
	lines := lo.Map(results, func(r fetcher.TestResult, _ int) string {
		return markup.Bold(r.Name) + "\n" + formatTestResult(r)
	})
	return strings.Join(lines, "\n\n")
}
