package bot

import (
	"context"
	"errors"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
	"github.com/kovalyov-valentin/crypto-intel/internal/botkit/markup"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/storage"
)

// Телеграм режет сообщения длиннее 4096 символов, оставляем запас на экранирование
const maxRewriteRunes = 3000

type Rewriter interface {
	Rewrite(ctx context.Context, id int64, template model.RewriteTemplate) (*model.NewsItem, error)
}

// ViewCmdRewrite переписывает статью по шаблону: /rewrite <id> [шаблон]
func ViewCmdRewrite(rewriter Rewriter) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		args := botkit.Fields(update)
		if len(args) == 0 {
			return botkit.ReplyText(bot, update, "Укажите ID статьи и шаблон: hot_event, sector_depth, product_update или media_report")
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return botkit.ReplyText(bot, update, "Некорректный ID статьи")
		}

		var name string
		if len(args) > 1 {
			name = args[1]
		}
		template, err := model.ParseRewriteTemplate(name)
		if err != nil {
			return botkit.ReplyText(bot, update, "Неизвестный шаблон, доступны: hot_event, sector_depth, product_update, media_report")
		}

		item, err := rewriter.Rewrite(ctx, id, template)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return botkit.ReplyText(bot, update, "Статья не найдена")
		case errors.Is(err, model.ErrAnalyzerDisabled):
			return botkit.ReplyText(bot, update, "Анализатор выключен, рерайт недоступен")
		case errors.Is(err, model.ErrRateLimited):
			return botkit.ReplyText(bot, update, "Лимит запросов к модели, попробуйте позже")
		case err != nil:
			return err
		}

		return botkit.Reply(bot, update, formatRewrite(item.Rewrite))
	}
}

func formatRewrite(rewrite *model.Rewrite) string {
	content := []rune(rewrite.Content)
	if len(content) > maxRewriteRunes {
		content = append(content[:maxRewriteRunes], '…')
	}

	return markup.Bold(rewrite.Title) + "\n" +
		markup.EscapeForMarkdown("шаблон: "+string(rewrite.Template)) + "\n\n" +
		markup.EscapeForMarkdown(string(content))
}
