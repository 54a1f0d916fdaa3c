package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
	"github.com/kovalyov-valentin/crypto-intel/internal/retention"
)

type Pruner interface {
	Prune(ctx context.Context, days int) (int64, error)
	ClearAll(ctx context.Context, confirm string) (int64, error)
}

func ViewCmdPrune(pruner Pruner, defaultDays int) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		days := defaultDays
		if args := botkit.Fields(update); len(args) > 0 {
			parsed, err := strconv.Atoi(args[0])
			if err != nil || parsed <= 0 {
				return botkit.ReplyText(bot, update, "Количество дней должно быть положительным числом")
			}
			days = parsed
		}

		deleted, err := pruner.Prune(ctx, days)
		if err != nil {
			return err
		}

		return botkit.ReplyText(bot, update, fmt.Sprintf("Удалено статей старше %d дн.: %d", days, deleted))
	}
}

// ViewCmdClear удаляет все статьи, только если после команды введена фраза подтверждения
func ViewCmdClear(pruner Pruner) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		deleted, err := pruner.ClearAll(ctx, update.Message.CommandArguments())
		if errors.Is(err, retention.ErrNotConfirmed) {
			return botkit.ReplyText(bot, update, fmt.Sprintf("Для подтверждения отправьте: /clear %s", retention.ConfirmClearAll))
		}
		if err != nil {
			return err
		}

		return botkit.ReplyText(bot, update, fmt.Sprintf("Удалено статей: %d", deleted))
	}
}
