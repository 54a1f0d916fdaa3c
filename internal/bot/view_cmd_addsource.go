package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
	"github.com/kovalyov-valentin/crypto-intel/internal/botkit/markup"
	"github.com/kovalyov-valentin/crypto-intel/internal/fetcher"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/storage"
)

type SourceAdder interface {
	AddSource(ctx context.Context, name, feedURL string) (model.Source, fetcher.TestResult, error)
}

// ViewCmdAddSource добавляет источник и сразу его проверяет
func ViewCmdAddSource(adder SourceAdder) botkit.ViewFunc {
	type addSourceArgs struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}

	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		args, err := botkit.ParseJSON[addSourceArgs](update.Message.CommandArguments())
		if err != nil {
			return botkit.ReplyText(bot, update, `Формат: /addsource {"name": "Decrypt", "url": "https://decrypt.co/feed"}`)
		}

		source, result, err := adder.AddSource(ctx, args.Name, args.URL)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return botkit.ReplyText(bot, update, "Источник с таким URL уже есть")
		}
		if err != nil {
			return err
		}

		msgText := fmt.Sprintf(
			"Источник добавлен с ID: %s\\. Используйте этот ID для управления источником\\.\n%s",
			markup.Code(source.ID),
			formatTestResult(result),
		)

		return botkit.Reply(bot, update, msgText)
	}
}

func formatTestResult(result fetcher.TestResult) string {
	if result.OK {
		return markup.EscapeForMarkdown(fmt.Sprintf("✅ Проверка прошла, в ленте %d статей", result.Items))
	}
	return markup.EscapeForMarkdown("❌ Проверка не прошла: " + result.Error)
}
