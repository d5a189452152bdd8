package database

import "database/sql"

// Message is a cached chat message. Payload holds the JSON encoded message as
// produced by the telegram adapter; timestamps are unix seconds. EditDate is
// zero for messages that were never edited.
type Message struct {
	ChatID           int64         `db:"chat_id"`
	MessageID        int           `db:"message_id"`
	ReplyToMessageID sql.NullInt64 `db:"reply_to_message_id"`
	Payload          string        `db:"payload"`
	Date             int64         `db:"date"`
	EditDate         int64         `db:"edit_date"`
	CreatedAt        int64         `db:"created_at"`
	UpdatedAt        int64         `db:"updated_at"`
}
