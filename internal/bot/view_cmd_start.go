package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
)

const helpText = `Команды:
/fetch [none|24h|3d] собрать новости со всех включенных источников
/analyze запустить анализ очереди
/cancel остановить анализ после текущей пачки
/progress состояние анализа и счетчики по статусам
/reanalyze <COMPLETED|SKIPPED|FAILED|id...> вернуть статьи в очередь
/prune [дни] удалить старые статьи
/clear <фраза> удалить все статьи
/addsource {"name": "...", "url": "..."} добавить источник
/listsources список источников
/testsource <id> проверить источник
/togglesource <id> включить или выключить источник
/deletesource <id> удалить источник
/retrysources перепроверить упавшие источники
/testall проверить все источники
/rewrite <id> [hot_event|sector_depth|product_update|media_report] переписать статью по шаблону`

func ViewCmdStart() botkit.ViewFunc {
	return func(_ context.Context, bot botkit.API, update tgbotapi.Update) error {
		return botkit.ReplyText(bot, update, helpText)
	}
}
