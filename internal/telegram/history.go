package telegram

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/punquote/internal/database"
	"github.com/edgard/punquote/internal/quotly"
)

const recordTimeout = 5 * time.Second

// History serves chat messages by id from the local message cache. The Bot
// API offers no history lookup, so every observed message is recorded.
type History struct {
	store database.Store
	log   *slog.Logger
}

// NewHistory creates a History backed by store.
func NewHistory(store database.Store, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{
		store: store,
		log:   logger.With("component", "history"),
	}
}

// Record caches m and the message it replies to. The embedded reply is a
// partial copy, so it never replaces an already cached one.
func (h *History) Record(ctx context.Context, m *models.Message) error {
	if m == nil {
		return nil
	}

	raw := ConvertMessage(m)
	row, err := encodeMessage(raw, m.Date, m.EditDate)
	if err != nil {
		return err
	}
	if err := h.store.SaveMessage(ctx, row); err != nil {
		return err
	}

	if m.ReplyToMessage != nil {
		reply, err := encodeMessage(raw.ReplyTo, m.ReplyToMessage.Date, m.ReplyToMessage.EditDate)
		if err != nil {
			return err
		}
		if err := h.store.SaveMessageIfAbsent(ctx, reply); err != nil {
			return err
		}
	}
	return nil
}

// GetMessages returns the cached messages of chatID with ids in
// [startID, endID], oldest first. Ids that were never observed are skipped.
// With includeReplies each message carries the message it replies to, one
// level deep.
func (h *History) GetMessages(ctx context.Context, chatID int64, startID, endID int, includeReplies bool) ([]*quotly.RawMessage, error) {
	rows, err := h.store.GetMessagesInRange(ctx, chatID, startID, endID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	msgs := make([]*quotly.RawMessage, 0, len(rows))
	for _, row := range rows {
		raw, err := decodeMessage(row)
		if err != nil {
			h.log.WarnContext(ctx, "Skipping undecodable cached message", "chat_id", chatID, "message_id", row.MessageID, "error", err)
			continue
		}
		msgs = append(msgs, raw)
	}

	if !includeReplies {
		return msgs, nil
	}

	var replyIDs []int
	for _, m := range msgs {
		if m.ReplyToID != 0 {
			replyIDs = append(replyIDs, m.ReplyToID)
		}
	}
	if len(replyIDs) == 0 {
		return msgs, nil
	}

	replies, err := h.store.GetMessagesByIDs(ctx, chatID, replyIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load replied messages: %w", err)
	}
	for _, m := range msgs {
		row, ok := replies[m.ReplyToID]
		if !ok {
			continue
		}
		reply, err := decodeMessage(row)
		if err != nil {
			h.log.WarnContext(ctx, "Skipping undecodable replied message", "chat_id", chatID, "message_id", row.MessageID, "error", err)
			continue
		}
		m.ReplyTo = reply
	}

	return msgs, nil
}

// Middleware records every message-bearing update before it is dispatched.
func (h *History) Middleware() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			for _, m := range []*models.Message{update.Message, update.EditedMessage, update.ChannelPost, update.EditedChannelPost} {
				if m == nil {
					continue
				}
				recordCtx, cancel := context.WithTimeout(ctx, recordTimeout)
				if err := h.Record(recordCtx, m); err != nil {
					h.log.ErrorContext(ctx, "Failed to record message", "chat_id", m.Chat.ID, "message_id", m.ID, "error", err)
				}
				cancel()
			}
			next(ctx, b, update)
		}
	}
}

func encodeMessage(raw *quotly.RawMessage, date, editDate int) (*database.Message, error) {
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message %d: %w", raw.ID, err)
	}

	row := &database.Message{
		ChatID:    raw.ChatID,
		MessageID: raw.ID,
		Payload:   string(payload),
		Date:      int64(date),
		EditDate:  int64(editDate),
	}
	if raw.ReplyToID != 0 {
		row.ReplyToMessageID = sql.NullInt64{Int64: int64(raw.ReplyToID), Valid: true}
	}
	return row, nil
}

func decodeMessage(row *database.Message) (*quotly.RawMessage, error) {
	var raw quotly.RawMessage
	if err := json.Unmarshal([]byte(row.Payload), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode message %d: %w", row.MessageID, err)
	}
	return &raw, nil
}
