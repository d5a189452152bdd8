// Package quotly turns chat messages into the request shape of the Quotly
// quote-sticker service and talks to that service over HTTP.
package quotly

import "encoding/json"

// ChatType is the platform's chat kind of a sender or forward source.
type ChatType string

const (
	ChatTypePrivate    ChatType = "private"
	ChatTypeBot        ChatType = "bot"
	ChatTypeGroup      ChatType = "group"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeChannel    ChatType = "channel"
)

// Peer is a user or chat as seen by the platform. ChatType is empty for users.
type Peer struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	IsBot     bool      `json:"is_bot,omitempty"`
	ChatType  ChatType  `json:"chat_type,omitempty"`
	Photo     *PhotoRef `json:"photo,omitempty"`
}

// Media is a single file with its dimensions.
type Media struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Sticker is a sticker file; only static stickers can be quoted.
type Sticker struct {
	Media
	IsAnimated bool `json:"is_animated,omitempty"`
	IsVideo    bool `json:"is_video,omitempty"`
}

// RawEntity is a formatting span as delivered by the platform.
type RawEntity struct {
	Type          string `json:"type"`
	Offset        int    `json:"offset"`
	Length        int    `json:"length"`
	URL           string `json:"url,omitempty"`
	Language      string `json:"language,omitempty"`
	CustomEmojiID string `json:"custom_emoji_id,omitempty"`
}

// RawMessage is the platform-neutral view of a chat message that Normalize
// consumes. ReplyTo points at the message this one replies to, if known.
type RawMessage struct {
	ID     int   `json:"id"`
	ChatID int64 `json:"chat_id"`
	From   *Peer `json:"from,omitempty"`

	ForwardSenderName string `json:"forward_sender_name,omitempty"`
	ForwardFrom       *Peer  `json:"forward_from,omitempty"`
	ForwardFromChat   *Peer  `json:"forward_from_chat,omitempty"`

	Text            string      `json:"text,omitempty"`
	Entities        []RawEntity `json:"entities,omitempty"`
	Caption         string      `json:"caption,omitempty"`
	CaptionEntities []RawEntity `json:"caption_entities,omitempty"`

	Sticker            *Sticker `json:"sticker,omitempty"`
	Photo              *Media   `json:"photo,omitempty"`
	VideoThumbnail     *Media   `json:"video_thumbnail,omitempty"`
	AnimationThumbnail *Media   `json:"animation_thumbnail,omitempty"`

	ReplyToID int         `json:"reply_to_id,omitempty"`
	ReplyTo   *RawMessage `json:"-"`
}

// PhotoRef holds opaque profile photo handles, passed through unmodified.
type PhotoRef struct {
	SmallFileID       string `json:"small_file_id"`
	SmallFileUniqueID string `json:"small_file_unique_id"`
	BigFileID         string `json:"big_file_id"`
	BigFileUniqueID   string `json:"big_file_unique_id"`
}

// Author is the identity rendered next to a quoted message.
type Author struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	Type  string    `json:"type"`
	Photo *PhotoRef `json:"photo,omitempty"`
}

// MediaRef is the single media item attached to a quoted message.
type MediaRef struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	Height   int    `json:"height"`
	Width    int    `json:"width"`
}

// Entity is a formatting span in the Quotly request.
type Entity struct {
	Type          string `json:"type"`
	Offset        int    `json:"offset"`
	Length        int    `json:"length"`
	URL           string `json:"url,omitempty"`
	Language      string `json:"language,omitempty"`
	CustomEmojiID string `json:"custom_emoji_id,omitempty"`
}

const (
	MediaTypeSticker = "sticker"
	MediaTypePhoto   = "photo"
)

// QuotedMessage is one message of a Quotly request. Reply forms a chain
// towards the root of the reply thread.
type QuotedMessage struct {
	ChatID    int64          `json:"chatId"`
	Avatar    bool           `json:"avatar"`
	From      Author         `json:"from"`
	Name      string         `json:"name"`
	Text      string         `json:"text,omitempty"`
	Entities  []Entity       `json:"entities"`
	Media     []MediaRef     `json:"media,omitempty"`
	MediaType string         `json:"mediaType,omitempty"`
	Reply     *QuotedMessage `json:"replyMessage,omitempty"`
}

// MarshalJSON emits "entities" (possibly null) only for messages with text.
func (m QuotedMessage) MarshalJSON() ([]byte, error) {
	type plain QuotedMessage
	if m.Text != "" {
		return json.Marshal(plain(m))
	}
	return json.Marshal(struct {
		plain
		Entities []Entity `json:"entities,omitempty"`
	}{plain: plain(m)})
}

// StickerRequest is the body posted to the Quotly generate endpoint.
type StickerRequest struct {
	Type     string           `json:"type"`
	Format   string           `json:"format"`
	Width    int              `json:"width"`
	Height   int              `json:"height"`
	Scale    int              `json:"scale"`
	Messages []*QuotedMessage `json:"messages"`
}

type generateResponse struct {
	OK    bool `json:"ok"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Result *struct {
		Image string `json:"image"`
	} `json:"result"`
}
