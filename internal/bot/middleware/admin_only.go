package middleware

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
)

// AdminOnly пропускает команду из админского чата или от администратора этого чата.
// Если админский чат не задан, команды закрыты для всех
func AdminOnly(adminChatID int64, next botkit.ViewFunc) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		if adminChatID != 0 && update.Message.Chat.ID == adminChatID {
			return next(ctx, bot, update)
		}

		if adminChatID != 0 && update.Message.From != nil {
			admins, err := bot.GetChatAdministrators(
				tgbotapi.ChatAdministratorsConfig{
					ChatConfig: tgbotapi.ChatConfig{
						ChatID: adminChatID,
					},
				},
			)
			if err != nil {
				return err
			}

			// Проверка на то, что тот кто отправил команду находится в списке администраторов
			for _, admin := range admins {
				if admin.User != nil && admin.User.ID == update.Message.From.ID {
					return next(ctx, bot, update)
				}
			}
		}

		return botkit.ReplyText(bot, update, "У вас нет прав для выполнения этой команды")
	}
}
