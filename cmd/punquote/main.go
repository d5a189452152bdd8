// Package main is the entry point for the punquote Telegram bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbot "github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/edgard/punquote/internal/bot"
	"github.com/edgard/punquote/internal/bot/handlers"
	"github.com/edgard/punquote/internal/bot/tasks"
	"github.com/edgard/punquote/internal/config"
	"github.com/edgard/punquote/internal/database"
	"github.com/edgard/punquote/internal/logger"
	"github.com/edgard/punquote/internal/quotly"
	"github.com/edgard/punquote/internal/telegram"
)

// Set by ldflags.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "punquote",
		Short:         "Telegram bot that turns messages into quote stickers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "./config.yaml", "Path to configuration file")
	root.AddCommand(startCmd(), migrateCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "punquote %s\n", version)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := database.NewDB(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			database.CloseDB(db)

			log.Info("Database is up to date", "path", cfg.Database.Path)
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, log)
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}

	log := logger.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.JSON)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)
	return cfg, log, nil
}

// run wires the message cache, Quotly client, Telegram bot and scheduler,
// then blocks until ctx is cancelled or a component fails.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	history := telegram.NewHistory(store, log)

	quotlyClient, err := quotly.NewClient(cfg.Quotly, cfg.Telegram.BotToken, log)
	if err != nil {
		return fmt.Errorf("failed to initialize quotly client: %w", err)
	}

	hDeps := handlers.HandlerDeps{
		Logger:  log,
		Config:  cfg,
		History: history,
		Quotly:  quotlyClient,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), history.Middleware()),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
		tgbot.WithAllowedUpdates(telegram.AllowedUpdates),
	}
	if secret := cfg.Telegram.Webhook.Secret; secret != "" {
		botOpts = append(botOpts, tgbot.WithWebhookSecretToken(secret))
	}

	tg, err := telegram.NewTelegramBot(cfg.Telegram.BotToken, log, botOpts...)
	if err != nil {
		return err
	}

	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	hDeps.BotUsername = me.Username
	log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		return fmt.Errorf("failed to register telegram handlers: %w", err)
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		return err
	}
	app := bot.NewBot(log, cfg, store, tg, sched)

	log.Info("Starting bot...", "version", version)
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped due to error: %w", err)
	}

	log.Info("Bot stopped gracefully.")
	return nil
}
