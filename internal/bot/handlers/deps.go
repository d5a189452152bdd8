package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/punquote/internal/config"
	"github.com/edgard/punquote/internal/quotly"
)

// MessageHistory loads chat messages by id range, oldest first, and records
// messages the bot sends itself, which never arrive as updates. Ids that do
// not exist are omitted from GetMessages results.
type MessageHistory interface {
	GetMessages(ctx context.Context, chatID int64, startID, endID int, includeReplies bool) ([]*quotly.RawMessage, error)
	Record(ctx context.Context, m *models.Message) error
}

// Sender is the subset of *bot.Bot the handlers send through.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendSticker(ctx context.Context, params *bot.SendStickerParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	History MessageHistory
	Quotly  quotly.Generator

	// BotUsername is matched against /command@username suffixes.
	BotUsername string
}

// recordSent caches a message the bot just sent so later ranges include it.
func recordSent(ctx context.Context, deps HandlerDeps, sent *models.Message) {
	if deps.History == nil || sent == nil || sent.ID == 0 {
		return
	}
	if err := deps.History.Record(ctx, sent); err != nil {
		deps.Logger.WarnContext(ctx, "Failed to record sent message", "chat_id", sent.Chat.ID, "message_id", sent.ID, "error", err)
	}
}
