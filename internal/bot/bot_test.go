package bot

import (
	"context"
	"testing"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/punquote/internal/config"
)

func newTestTelegramBot(t *testing.T) *tgbot.Bot {
	t.Helper()

	b, err := tgbot.New("123456:test-token", tgbot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("tgbot.New: %v", err)
	}
	return b
}

func TestNewBotBuildsServerOnlyForWebhook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode       string
		wantServer bool
	}{
		{mode: config.ModePolling, wantServer: false},
		{mode: config.ModeWebhook, wantServer: true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Config{Telegram: config.TelegramConfig{
				Mode: tt.mode,
				Webhook: config.WebhookConfig{
					URL:    "https://example.com/telegram/webhook",
					Listen: "127.0.0.1:0",
					Path:   "/telegram/webhook",
				},
			}}

			b := NewBot(discardLogger(), cfg, nil, newTestTelegramBot(t), nil)
			if got := b.server != nil; got != tt.wantServer {
				t.Errorf("server built = %v, want %v", got, tt.wantServer)
			}
		})
	}
}

func TestRunFailsWhenWebhookCannotBeRegistered(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Telegram: config.TelegramConfig{
		Mode:    config.ModeWebhook,
		Webhook: config.WebhookConfig{URL: "https://example.com/hook", Listen: "127.0.0.1:0", Path: "/hook"},
	}}
	b := NewBot(discardLogger(), cfg, nil, newTestTelegramBot(t), nil)

	// A cancelled context makes the setWebhook call fail before any network I/O.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Run(ctx); err == nil {
		t.Fatal("Run should fail when the webhook cannot be set")
	}
}
