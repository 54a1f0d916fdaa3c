// Package botkittest provides a fake Telegram client and update builders for view tests.
package botkittest

import (
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// CommandUpdate собирает апдейт с командой так, как его прислал бы телеграм
func CommandUpdate(chatID, userID int64, text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}

	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			Chat: &tgbotapi.Chat{ID: chatID},
			From: &tgbotapi.User{ID: userID},
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: cmdLen},
			},
		},
	}
}

// API запоминает отправленные сообщения
type API struct {
	mu     sync.Mutex
	Admins []int64
	Sent   []tgbotapi.MessageConfig
}

func (a *API) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		a.Sent = append(a.Sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (a *API) GetChatAdministrators(tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error) {
	members := make([]tgbotapi.ChatMember, 0, len(a.Admins))
	for _, id := range a.Admins {
		members = append(members, tgbotapi.ChatMember{User: &tgbotapi.User{ID: id}, Status: "administrator"})
	}
	return members, nil
}

// Last текст последнего отправленного сообщения
func (a *API) Last() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.Sent) == 0 {
		return ""
	}
	return a.Sent[len(a.Sent)-1].Text
}
