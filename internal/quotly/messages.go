package quotly

const (
	// forwardedSenderID is the synthetic author id used for forwards whose
	// original sender hid their account.
	forwardedSenderID = 1

	maxReplyDepth = 64

	unknownType = "unknown"
)

var chatTypes = map[ChatType]string{
	ChatTypePrivate:    "private",
	ChatTypeBot:        "bot",
	ChatTypeGroup:      "group",
	ChatTypeSupergroup: "supergroup",
	ChatTypeChannel:    "channel",
}

var entityTypes = map[string]string{
	"mention":       "mention",
	"hashtag":       "hashtag",
	"cashtag":       "cashtag",
	"bot_command":   "bot_command",
	"url":           "url",
	"email":         "email",
	"phone_number":  "phone_number",
	"bold":          "bold",
	"italic":        "italic",
	"underline":     "underline",
	"strikethrough": "strikethrough",
	"spoiler":       "spoiler",
	"code":          "code",
	"pre":           "pre",
	"blockquote":    "blockquote",
	"text_link":     "text_link",
	"text_mention":  "text_mention",
	"bank_card":     "bank_card",
	"custom_emoji":  "custom_emoji",
}

// ChatTypeName maps a platform chat kind to its Quotly name.
func ChatTypeName(t ChatType) string {
	if name, ok := chatTypes[t]; ok {
		return name
	}
	return unknownType
}

// EntityTypeName maps a platform entity kind to its Quotly name.
func EntityTypeName(t string) string {
	if name, ok := entityTypes[t]; ok {
		return name
	}
	return unknownType
}

// Normalize converts a message and its reply chain into a QuotedMessage.
// It returns nil for messages without a sender or without anything to quote.
func Normalize(m *RawMessage, preserveMedia bool) *QuotedMessage {
	return normalize(m, preserveMedia, 0)
}

func normalize(m *RawMessage, preserveMedia bool, depth int) *QuotedMessage {
	if m == nil || m.From == nil || depth > maxReplyDepth {
		return nil
	}

	author := prepareAuthor(m)
	mediaType, media := prepareMedia(m, preserveMedia)

	text, entities := m.Text, m.Entities
	if m.Caption != "" {
		text, entities = m.Caption, m.CaptionEntities
	}

	if text == "" && media == nil {
		return nil
	}

	quoted := &QuotedMessage{
		ChatID: m.ChatID,
		Avatar: true,
		From:   author,
		Name:   author.Name,
		Text:   text,
	}
	if text != "" {
		quoted.Entities = prepareEntities(entities)
	}
	if media != nil {
		quoted.Media = []MediaRef{*media}
		quoted.MediaType = mediaType
	}
	if m.ReplyTo != nil {
		quoted.Reply = normalize(m.ReplyTo, preserveMedia, depth+1)
	}

	return quoted
}

func prepareAuthor(m *RawMessage) Author {
	if m.ForwardSenderName != "" {
		return Author{
			ID:   forwardedSenderID,
			Name: m.ForwardSenderName,
			Type: chatTypes[ChatTypePrivate],
		}
	}

	var peer *Peer
	var typ string
	switch {
	case m.ForwardFrom != nil:
		peer = m.ForwardFrom
	case m.ForwardFromChat != nil:
		peer = m.ForwardFromChat
		typ = ChatTypeName(peer.ChatType)
	default:
		peer = m.From
		// Messages sent on behalf of a chat carry the chat as sender.
		if peer.ChatType != "" {
			typ = ChatTypeName(peer.ChatType)
		}
	}

	if typ == "" {
		typ = chatTypes[ChatTypePrivate]
		if peer.IsBot {
			typ = chatTypes[ChatTypeBot]
		}
	}

	return Author{
		ID:    peer.ID,
		Name:  displayName(peer),
		Type:  typ,
		Photo: peer.Photo,
	}
}

func displayName(p *Peer) string {
	if p.LastName != "" {
		return p.FirstName + " " + p.LastName
	}
	return p.FirstName
}

func prepareMedia(m *RawMessage, preserveMedia bool) (string, *MediaRef) {
	if m.Sticker == nil && !preserveMedia {
		return "", nil
	}

	var source *Media
	var mediaType string

	switch {
	case m.Sticker != nil && !m.Sticker.IsAnimated && !m.Sticker.IsVideo:
		source = &m.Sticker.Media
		mediaType = MediaTypeSticker
	case m.Photo != nil:
		source = m.Photo
	case m.VideoThumbnail != nil:
		source = m.VideoThumbnail
	case m.AnimationThumbnail != nil:
		source = m.AnimationThumbnail
	}

	if source == nil {
		return "", nil
	}
	if mediaType == "" {
		mediaType = MediaTypePhoto
	}

	return mediaType, &MediaRef{
		FileID:   source.FileID,
		FileSize: source.FileSize,
		Height:   source.Height,
		Width:    source.Width,
	}
}

func prepareEntities(entities []RawEntity) []Entity {
	if len(entities) == 0 {
		return nil
	}

	prepared := make([]Entity, 0, len(entities))
	for _, e := range entities {
		prepared = append(prepared, Entity{
			Type:          EntityTypeName(e.Type),
			Offset:        e.Offset,
			Length:        e.Length,
			URL:           e.URL,
			Language:      e.Language,
			CustomEmojiID: e.CustomEmojiID,
		})
	}
	return prepared
}
