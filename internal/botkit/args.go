package botkit

import (
	"encoding/json"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseJSON разбирает аргументы команды вида /addsource {"name": "...", "url": "..."}
func ParseJSON[T any](src string) (T, error) {
	var args T

	if err := json.Unmarshal([]byte(strings.TrimSpace(src)), &args); err != nil {
		return args, fmt.Errorf("parse command arguments: %w", err)
	}

	return args, nil
}

// Fields делит аргументы команды по пробелам
func Fields(update tgbotapi.Update) []string {
	return strings.Fields(update.Message.CommandArguments())
}

// Reply отвечает в чат, из которого пришла команда. Текст уже должен быть экранирован под MarkdownV2
func Reply(bot API, update tgbotapi.Update, text string) error {
	reply := tgbotapi.NewMessage(update.Message.Chat.ID, text)
	reply.ParseMode = tgbotapi.ModeMarkdownV2
	reply.DisableWebPagePreview = true

	_, err := bot.Send(reply)
	return err
}

// ReplyText отвечает простым текстом без разметки
func ReplyText(bot API, update tgbotapi.Update, text string) error {
	_, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, text))
	return err
}
