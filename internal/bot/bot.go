// Package bot implements the bot lifecycle: update intake by long polling
// or webhook, the webhook HTTP server and the task scheduler.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/punquote/internal/config"
	"github.com/edgard/punquote/internal/database"
	"github.com/edgard/punquote/internal/server"
	"github.com/edgard/punquote/internal/telegram"
)

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	store     database.Store
	tgBot     *tgbot.Bot
	scheduler *Scheduler
	server    *server.Server
}

// NewBot creates a new instance of the bot. In webhook mode it also builds
// the HTTP server that receives updates.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	store database.Store,
	tgBot *tgbot.Bot,
	scheduler *Scheduler,
) *Bot {
	log := logger.With("component", "bot_orchestrator")

	b := &Bot{
		logger:    log,
		cfg:       cfg,
		store:     store,
		tgBot:     tgBot,
		scheduler: scheduler,
	}

	if cfg.Telegram.Mode == config.ModeWebhook {
		wh := cfg.Telegram.Webhook
		router := server.NewRouter(wh.Path, tgBot.WebhookHandler(), store, logger)
		b.server = server.New(wh.Listen, router, logger)
	}

	return b
}

// Run starts the bot and all its components, handling graceful shutdown on context cancellation.
// It returns an error if any component fails during startup or execution.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...", "mode", b.cfg.Telegram.Mode)

	g, gCtx := errgroup.WithContext(ctx)

	if b.cfg.Telegram.Mode == config.ModeWebhook {
		if err := b.registerWebhook(ctx); err != nil {
			return err
		}

		g.Go(func() error {
			b.logger.Info("Starting Telegram webhook update processing...")
			b.tgBot.StartWebhook(gCtx)
			b.logger.Info("Telegram webhook update processing stopped.")
			return nil
		})

		g.Go(func() error {
			return b.server.Run(gCtx)
		})
	} else {
		if _, err := b.tgBot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
			return fmt.Errorf("failed to delete webhook before polling: %w", err)
		}

		g.Go(func() error {
			b.logger.Info("Starting Telegram bot listener...")

			b.tgBot.Start(gCtx)
			b.logger.Info("Telegram bot listener stopped.")

			if gCtx.Err() == nil {
				b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
				return fmt.Errorf("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}

		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

func (b *Bot) registerWebhook(ctx context.Context) error {
	wh := b.cfg.Telegram.Webhook

	_, err := b.tgBot.SetWebhook(ctx, &tgbot.SetWebhookParams{
		URL:            wh.URL,
		SecretToken:    wh.Secret,
		AllowedUpdates: telegram.AllowedUpdates,
	})
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	b.logger.Info("Webhook registered", "listen", wh.Listen, "path", wh.Path)
	return nil
}
