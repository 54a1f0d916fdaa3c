package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/storage"
)

type Requeuer interface {
	Requeue(ctx context.Context, filter storage.RequeueFilter) (int64, error)
}

// ViewCmdReanalyze возвращает в очередь статьи по статусу или по списку id
func ViewCmdReanalyze(items Requeuer) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		filter, err := parseRequeueArgs(botkit.Fields(update))
		if err != nil {
			return botkit.ReplyText(bot, update, err.Error())
		}

		n, err := items.Requeue(ctx, filter)
		if err != nil {
			return err
		}

		return botkit.ReplyText(bot, update, fmt.Sprintf("Возвращено в очередь: %d", n))
	}
}

func parseRequeueArgs(args []string) (storage.RequeueFilter, error) {
	if len(args) == 0 {
		return storage.RequeueFilter{}, fmt.Errorf("укажите статус (COMPLETED, SKIPPED, FAILED) или id статей")
	}

	if status, err := model.ParseStatus(args[0]); err == nil {
		if !status.Terminal() {
			return storage.RequeueFilter{}, fmt.Errorf("вернуть в очередь можно только COMPLETED, SKIPPED или FAILED")
		}
		return storage.RequeueFilter{Status: status}, nil
	}

	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return storage.RequeueFilter{}, fmt.Errorf("некорректный id %q", arg)
		}
		ids = append(ids, id)
	}

	return storage.RequeueFilter{IDs: ids}, nil
}
