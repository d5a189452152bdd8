package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewDefaultHandler returns the handler for updates no command matched. The
// message cache middleware has already recorded them, so it only logs.
func NewDefaultHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		deps.Logger.DebugContext(ctx, "Unhandled update", "update_id", update.ID)
	}
}
