package middleware

import (
	"context"
	"testing"

	"github.com/go-playground/assert/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
	"github.com/kovalyov-valentin/crypto-intel/internal/botkit/botkittest"
)

func TestAdminOnly(t *testing.T) {
	const adminChat = -1001

	tests := []struct {
		name    string
		admin   int64
		chatID  int64
		userID  int64
		allowed bool
	}{
		{name: "admin chat", admin: adminChat, chatID: adminChat, userID: 5, allowed: true},
		{name: "chat administrator in private chat", admin: adminChat, chatID: 77, userID: 7, allowed: true},
		{name: "stranger", admin: adminChat, chatID: 88, userID: 8, allowed: false},
		{name: "no admin chat configured", admin: 0, chatID: 0, userID: 7, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &botkittest.API{Admins: []int64{7}}
			called := false
			view := AdminOnly(tt.admin, func(context.Context, botkit.API, tgbotapi.Update) error {
				called = true
				return nil
			})

			err := view(context.Background(), api, botkittest.CommandUpdate(tt.chatID, tt.userID, "/clear"))
			assert.Equal(t, nil, err)
			assert.Equal(t, tt.allowed, called)
			if !tt.allowed {
				assert.Equal(t, 1, len(api.Sent))
			}
		})
	}
}
