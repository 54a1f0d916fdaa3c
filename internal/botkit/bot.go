package botkit

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API часть клиента телеграма, которой пользуются view. *tgbotapi.BotAPI ей соответствует
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
}

// Update здесь это любой эвент, который приходит от телеграма при взаимодействии пользователя с ботом.
// ViewFunc реагирует на определенную команду
type ViewFunc func(ctx context.Context, bot API, update tgbotapi.Update) error

const DefaultUpdateTimeout = 5 * time.Second

type Bot struct {
	// Инстанс апи телеграма
	api *tgbotapi.BotAPI
	// Через него view отвечают пользователю
	client API
	// Мапа в которой будем хранить view
	cmdViews map[string]ViewFunc
	// Сколько живет обработка одного апдейта. Сбор лент и проверка источников небыстрые
	updateTimeout time.Duration
}

func New(api *tgbotapi.BotAPI, updateTimeout time.Duration) *Bot {
	if updateTimeout <= 0 {
		updateTimeout = DefaultUpdateTimeout
	}

	return &Bot{
		api:           api,
		client:        api,
		updateTimeout: updateTimeout,
	}
}

// RegisterCmdView регистрирует view для команды
func (b *Bot) RegisterCmdView(cmd string, view ViewFunc) {
	if b.cmdViews == nil {
		b.cmdViews = make(map[string]ViewFunc)
	}

	b.cmdViews[cmd] = view
}

// Run слушает апдейты до отмены контекста. Каждый апдейт обрабатывается в своей горутине,
// чтобы долгая команда не держала остальные
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case update := <-updates:
			wg.Add(1)
			go func() {
				defer wg.Done()

				updateCtx, updateCancel := context.WithTimeout(ctx, b.updateTimeout)
				defer updateCancel()

				b.handleUpdate(updateCtx, update)
			}()
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

// handleUpdate роутит команду на соответствующую view
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// В процессе работы бота в каких то view может произойти паника, поэтому мы ее должны перехватить
	defer func() {
		if p := recover(); p != nil {
			slog.Error("panic recovered", "panic", p, "stack", string(debug.Stack()))
		}
	}()

	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	cmd := update.Message.Command()

	view, ok := b.cmdViews[cmd]
	if !ok {
		return
	}

	if err := view(ctx, b.client, update); err != nil {
		slog.Error("failed to handle update", "command", cmd, "error", err)

		if _, err := b.client.Send(
			tgbotapi.NewMessage(update.Message.Chat.ID, "internal error"),
		); err != nil {
			slog.Error("failed to send message", "error", err)
		}
	}
}
