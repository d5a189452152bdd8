package telegram

import (
	"github.com/go-telegram/bot/models"

	"github.com/edgard/punquote/internal/quotly"
)

// ConvertMessage maps a Bot API message, including the reply it carries, to
// the platform-neutral message consumed by the quote normalizer.
func ConvertMessage(m *models.Message) *quotly.RawMessage {
	if m == nil {
		return nil
	}

	raw := &quotly.RawMessage{
		ID:              m.ID,
		ChatID:          m.Chat.ID,
		Text:            m.Text,
		Entities:        convertEntities(m.Entities),
		Caption:         m.Caption,
		CaptionEntities: convertEntities(m.CaptionEntities),
	}

	switch {
	case m.From != nil:
		raw.From = userPeer(m.From)
	case m.SenderChat != nil:
		raw.From = chatPeer(m.SenderChat)
	}

	if o := m.ForwardOrigin; o != nil {
		switch {
		case o.MessageOriginHiddenUser != nil:
			raw.ForwardSenderName = o.MessageOriginHiddenUser.SenderUserName
		case o.MessageOriginUser != nil:
			raw.ForwardFrom = userPeer(&o.MessageOriginUser.SenderUser)
		case o.MessageOriginChat != nil:
			raw.ForwardFromChat = chatPeer(&o.MessageOriginChat.SenderChat)
		case o.MessageOriginChannel != nil:
			raw.ForwardFromChat = chatPeer(&o.MessageOriginChannel.Chat)
		}
	}

	if s := m.Sticker; s != nil {
		raw.Sticker = &quotly.Sticker{
			Media: quotly.Media{
				FileID:   s.FileID,
				FileSize: int64(s.FileSize),
				Width:    s.Width,
				Height:   s.Height,
			},
			IsAnimated: s.IsAnimated,
			IsVideo:    s.IsVideo,
		}
	}

	// Sizes are ordered from smallest to largest.
	if len(m.Photo) > 0 {
		raw.Photo = photoMedia(&m.Photo[len(m.Photo)-1])
	}
	if m.Video != nil && m.Video.Thumbnail != nil {
		raw.VideoThumbnail = photoMedia(m.Video.Thumbnail)
	}
	if m.Animation != nil && m.Animation.Thumbnail != nil {
		raw.AnimationThumbnail = photoMedia(m.Animation.Thumbnail)
	}

	if m.ReplyToMessage != nil {
		raw.ReplyToID = m.ReplyToMessage.ID
		raw.ReplyTo = ConvertMessage(m.ReplyToMessage)
	}

	return raw
}

func userPeer(u *models.User) *quotly.Peer {
	return &quotly.Peer{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
	}
}

func chatPeer(c *models.Chat) *quotly.Peer {
	p := &quotly.Peer{
		ID:       c.ID,
		ChatType: quotly.ChatType(c.Type),
	}
	if c.Title != "" {
		p.FirstName = c.Title
	} else {
		p.FirstName = c.FirstName
		p.LastName = c.LastName
	}
	return p
}

func photoMedia(p *models.PhotoSize) *quotly.Media {
	return &quotly.Media{
		FileID:   p.FileID,
		FileSize: int64(p.FileSize),
		Width:    p.Width,
		Height:   p.Height,
	}
}

func convertEntities(entities []models.MessageEntity) []quotly.RawEntity {
	if len(entities) == 0 {
		return nil
	}
	out := make([]quotly.RawEntity, 0, len(entities))
	for _, e := range entities {
		out = append(out, quotly.RawEntity{
			Type:          string(e.Type),
			Offset:        e.Offset,
			Length:        e.Length,
			URL:           e.URL,
			Language:      e.Language,
			CustomEmojiID: e.CustomEmojiID,
		})
	}
	return out
}
