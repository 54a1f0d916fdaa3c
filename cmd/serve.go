package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kovalyov-valentin/crypto-intel/internal/bot"
	"github.com/kovalyov-valentin/crypto-intel/internal/bot/middleware"
	"github.com/kovalyov-valentin/crypto-intel/internal/botkit"
	"github.com/kovalyov-valentin/crypto-intel/internal/config"
	"github.com/kovalyov-valentin/crypto-intel/internal/notifier"
	"github.com/kovalyov-valentin/crypto-intel/internal/server"
)

// Долгие команды бота: сбор лент и проверка всех упавших источников
const botUpdateTimeout = 3 * time.Minute

func serveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the fetcher, enrichment, retention, HTTP API and Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Graceful shutdown
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, *cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.seed(ctx); err != nil {
				return err
			}
			if _, err := a.engine.Recover(ctx); err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)

			// Воркер fetcher
			g.Go(func() error {
				return worker("fetcher", a.fetcher.Start(ctx))
			})

			g.Go(func() error {
				return worker("pruner", a.pruner.Start(ctx, cfg.RetentionDays, cfg.RetentionInterval))
			})

			if cfg.EnrichInterval > 0 {
				g.Go(func() error {
					return worker("enrichment scheduler", a.engine.Schedule(ctx, cfg.EnrichInterval))
				})
			}

			api := server.New(ctx, server.Deps{
				Sources:  a.sources,
				Items:    a.items,
				Fetcher:  a.fetcher,
				Enricher: a.engine,
				Pruner:   a.pruner,
				Rewriter: a.rewriter,
			}, a.cutoff, cfg.RetentionDays)
			g.Go(func() error {
				return worker("http server", api.Start(ctx, cfg.HTTPAddr))
			})

			if cfg.TelegramBotToken != "" {
				botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
				if err != nil {
					return err
				}

				newsBot := newBot(ctx, a, botAPI)
				g.Go(func() error {
					return worker("bot", newsBot.Run(ctx))
				})

				if cfg.TelegramChannelID != 0 {
					n := notifier.New(
						a.items,
						botAPI,
						cfg.NotificationInterval,
						// Заглядываем в прошлое на два интервала сбора
						2*cfg.FetchInterval,
						cfg.TelegramChannelID,
					)
					g.Go(func() error {
						return worker("notifier", n.Start(ctx))
					})
				}
			} else {
				slog.Info("telegram bot token is not set, bot and notifier are disabled")
			}

			return g.Wait()
		},
	}
}

// newBot регистрирует команды. Все, что меняет состояние, доступно только админам
func newBot(ctx context.Context, a *app, botAPI *tgbotapi.BotAPI) *botkit.Bot {
	adminOnly := func(view botkit.ViewFunc) botkit.ViewFunc {
		return middleware.AdminOnly(a.cfg.TelegramAdminChatID, view)
	}

	newsBot := botkit.New(botAPI, botUpdateTimeout)
	newsBot.RegisterCmdView("start", bot.ViewCmdStart())
	newsBot.RegisterCmdView("help", bot.ViewCmdStart())
	newsBot.RegisterCmdView("listsources", bot.ViewCmdListSources(a.sources))
	newsBot.RegisterCmdView("progress", bot.ViewCmdProgress(a.engine, a.items))

	newsBot.RegisterCmdView("fetch", adminOnly(bot.ViewCmdFetch(a.fetcher, a.cutoff)))
	newsBot.RegisterCmdView("analyze", adminOnly(bot.ViewCmdAnalyze(ctx, a.engine)))
	newsBot.RegisterCmdView("cancel", adminOnly(bot.ViewCmdCancel(a.engine)))
	newsBot.RegisterCmdView("reanalyze", adminOnly(bot.ViewCmdReanalyze(a.items)))
	newsBot.RegisterCmdView("prune", adminOnly(bot.ViewCmdPrune(a.pruner, a.cfg.RetentionDays)))
	newsBot.RegisterCmdView("clear", adminOnly(bot.ViewCmdClear(a.pruner)))
	newsBot.RegisterCmdView("addsource", adminOnly(bot.ViewCmdAddSource(a.fetcher)))
	newsBot.RegisterCmdView("testsource", adminOnly(bot.ViewCmdTestSource(a.fetcher)))
	newsBot.RegisterCmdView("retrysources", adminOnly(bot.ViewCmdRetrySources(a.fetcher)))
	newsBot.RegisterCmdView("testall", adminOnly(bot.ViewCmdTestAllSources(a.fetcher)))
	newsBot.RegisterCmdView("rewrite", adminOnly(bot.ViewCmdRewrite(a.rewriter)))
	newsBot.RegisterCmdView("togglesource", adminOnly(bot.ViewCmdToggleSource(a.sources)))
	newsBot.RegisterCmdView("deletesource", adminOnly(bot.ViewCmdDeleteSource(a.sources)))

	return newsBot
}

// worker превращает штатную остановку по отмене контекста в nil
func worker(name string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		slog.Info("worker stopped", "worker", name)
		return nil
	}

	slog.Error("worker failed", "worker", name, "error", err)
	return err
}
