package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Telegram shows a chat action for about five seconds.
const chatActionInterval = 4 * time.Second

// startChatAction shows action in the chat and keeps refreshing it until the
// returned release function is called. Release is idempotent and returns
// only after the refresh loop has exited, so no action is sent after it.
func startChatAction(ctx context.Context, s Sender, log *slog.Logger, chatID int64, threadID int, action models.ChatAction) (release func()) {
	params := &bot.SendChatActionParams{
		ChatID:          chatID,
		MessageThreadID: threadID,
		Action:          action,
	}

	if _, err := s.SendChatAction(ctx, params); err != nil {
		log.WarnContext(ctx, "Failed to send chat action", "chat_id", chatID, "action", action, "error", err)
	}

	actionCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(chatActionInterval)
		defer ticker.Stop()

		for {
			select {
			case <-actionCtx.Done():
				return
			case <-ticker.C:
				if _, err := s.SendChatAction(actionCtx, params); err != nil && actionCtx.Err() == nil {
					log.DebugContext(ctx, "Chat action refresh failed", "chat_id", chatID, "error", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
