package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the message cache operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage inserts a message or replaces the cached copy, unless the
	// cached copy carries a later edit.
	SaveMessage(ctx context.Context, msg *Message) error

	// SaveMessageIfAbsent inserts a message only if it is not cached yet.
	SaveMessageIfAbsent(ctx context.Context, msg *Message) error

	// GetMessagesInRange returns the cached messages with ids in [startID, endID]
	// ordered by id. Missing ids are skipped.
	GetMessagesInRange(ctx context.Context, chatID int64, startID, endID int) ([]*Message, error)

	// GetMessagesByIDs returns the cached messages among ids, keyed by message id.
	GetMessagesByIDs(ctx context.Context, chatID int64, ids []int) (map[int]*Message, error)

	// DeleteMessagesBefore removes messages last updated before t.
	DeleteMessagesBefore(ctx context.Context, t time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    time.Now,
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const insertMessageQuery = `
	INSERT INTO messages (chat_id, message_id, reply_to_message_id, payload, date, edit_date, created_at, updated_at)
	VALUES (:chat_id, :message_id, :reply_to_message_id, :payload, :date, :edit_date, :created_at, :updated_at)`

func (s *sqlxStore) SaveMessage(ctx context.Context, msg *Message) error {
	return s.insert(ctx, msg, insertMessageQuery+`
	ON CONFLICT (chat_id, message_id) DO UPDATE SET
		reply_to_message_id = excluded.reply_to_message_id,
		payload = excluded.payload,
		date = excluded.date,
		edit_date = excluded.edit_date,
		updated_at = excluded.updated_at
	WHERE excluded.edit_date >= messages.edit_date`)
}

func (s *sqlxStore) SaveMessageIfAbsent(ctx context.Context, msg *Message) error {
	return s.insert(ctx, msg, insertMessageQuery+`
	ON CONFLICT (chat_id, message_id) DO NOTHING`)
}

func (s *sqlxStore) insert(ctx context.Context, msg *Message, query string) error {
	if msg == nil {
		return errors.New("cannot save nil message")
	}
	if msg.ChatID == 0 || msg.MessageID <= 0 {
		return fmt.Errorf("invalid message key chat_id=%d message_id=%d", msg.ChatID, msg.MessageID)
	}

	now := s.now().UTC().Unix()
	if msg.CreatedAt == 0 {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	if _, err := s.db.NamedExecContext(ctx, query, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save message", "chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
		return fmt.Errorf("failed to save message %d in chat %d: %w", msg.MessageID, msg.ChatID, err)
	}

	s.logger.DebugContext(ctx, "Message cached", "chat_id", msg.ChatID, "message_id", msg.MessageID)
	return nil
}

func (s *sqlxStore) GetMessagesInRange(ctx context.Context, chatID int64, startID, endID int) ([]*Message, error) {
	if startID > endID {
		return nil, fmt.Errorf("invalid range: start %d > end %d", startID, endID)
	}

	var msgs []*Message
	query := `SELECT chat_id, message_id, reply_to_message_id, payload, date, edit_date, created_at, updated_at
	          FROM messages
	          WHERE chat_id = ? AND message_id BETWEEN ? AND ?
	          ORDER BY message_id ASC`

	if err := s.db.SelectContext(ctx, &msgs, query, chatID, startID, endID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching messages", "chat_id", chatID, "error", err)
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Failed to fetch messages in range", "chat_id", chatID, "start_id", startID, "end_id", endID, "error", err)
		return nil, fmt.Errorf("failed to get messages %d..%d in chat %d: %w", startID, endID, chatID, err)
	}

	s.logger.DebugContext(ctx, "Fetched cached messages", "chat_id", chatID, "start_id", startID, "end_id", endID, "count", len(msgs))
	return msgs, nil
}

func (s *sqlxStore) GetMessagesByIDs(ctx context.Context, chatID int64, ids []int) (map[int]*Message, error) {
	result := make(map[int]*Message, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT chat_id, message_id, reply_to_message_id, payload, date, edit_date, created_at, updated_at
	          FROM messages
	          WHERE chat_id = ? AND message_id IN (?)`, chatID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build message lookup query: %w", err)
	}

	var msgs []*Message
	if err := s.db.SelectContext(ctx, &msgs, s.db.Rebind(query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch messages by id", "chat_id", chatID, "count", len(ids), "error", err)
		return nil, fmt.Errorf("failed to get messages by id in chat %d: %w", chatID, err)
	}

	for _, m := range msgs {
		result[m.MessageID] = m
	}
	return result, nil
}

func (s *sqlxStore) DeleteMessagesBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE updated_at < ?`, t.UTC().Unix())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete old messages", "before", t, "error", err)
		return 0, fmt.Errorf("failed to delete messages before %s: %w", t.Format(time.RFC3339), err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count after pruning", "error", err)
		return 0, nil
	}

	s.logger.InfoContext(ctx, "Pruned cached messages", "before", t, "deleted", deleted)
	return deleted, nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Running database maintenance (VACUUM)")

	// VACUUM cannot run inside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
