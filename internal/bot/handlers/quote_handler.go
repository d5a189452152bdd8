package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/punquote/internal/quotly"
)

const stickerFilename = "sticker.webp"

// NewQuoteHandler returns a handler for the /q command.
func NewQuoteHandler(deps HandlerDeps) bot.HandlerFunc {
	return quoteHandler{deps}.Handle
}

// quoteHandler turns the replied-to message, and optionally its neighbours,
// into a quote sticker.
type quoteHandler struct {
	deps HandlerDeps
}

func (h quoteHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "quote")

	if update.Message == nil {
		log.WarnContext(ctx, "Quote handler received update with nil message", "update_id", update.ID)
		return
	}

	if err := h.quote(ctx, b, update.Message); err != nil {
		log.ErrorContext(ctx, "Quote command failed",
			"error", err,
			"chat_id", update.Message.Chat.ID,
			"message_id", update.Message.ID)
	}
}

func (h quoteHandler) quote(ctx context.Context, s Sender, msg *models.Message) error {
	log := h.deps.Logger.With("handler", "quote", "chat_id", msg.Chat.ID)
	texts := h.deps.Config.Messages

	anchor := repliedMessage(msg)
	if anchor == nil {
		h.reply(ctx, s, msg, texts.ReplyRequired)
		return nil
	}

	args := ParseArguments(msg.Text)
	rng := ResolveRange(anchor.ID, args.MessageCount)

	log.InfoContext(ctx, "Handling /q command",
		"start_id", rng.StartID,
		"end_id", rng.EndID,
		"replies", args.PreserveReplies,
		"media", args.PreserveMedia)

	messages, err := h.deps.History.GetMessages(ctx, msg.Chat.ID, rng.StartID, rng.EndID, args.PreserveReplies)
	if err != nil {
		h.reply(ctx, s, msg, fmt.Sprintf(texts.GenericError, err))
		return fmt.Errorf("failed to fetch messages: %w", err)
	}
	if len(messages) == 0 {
		log.DebugContext(ctx, "No messages found in range")
		return nil
	}

	release := startChatAction(ctx, s, log, msg.Chat.ID, msg.MessageThreadID, models.ChatActionChooseSticker)
	defer release()

	image, err := h.deps.Quotly.Generate(ctx, messages, args.PreserveMedia)
	if err != nil {
		var serverErr *quotly.ServerError
		if errors.As(err, &serverErr) {
			h.reply(ctx, s, msg, fmt.Sprintf(texts.ServerError, serverErr.Code, serverErr.Message))
		} else {
			h.reply(ctx, s, msg, fmt.Sprintf(texts.GenericError, err))
		}
		return fmt.Errorf("failed to generate quote: %w", err)
	}

	if image == "" {
		log.DebugContext(ctx, "Nothing to quote in range", "fetched", len(messages))
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		h.reply(ctx, s, msg, fmt.Sprintf(texts.GenericError, err))
		return fmt.Errorf("failed to decode sticker image: %w", err)
	}

	sent, err := s.SendSticker(ctx, &bot.SendStickerParams{
		ChatID:          msg.Chat.ID,
		MessageThreadID: msg.MessageThreadID,
		Sticker:         &models.InputFileUpload{Filename: stickerFilename, Data: bytes.NewReader(data)},
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		return fmt.Errorf("failed to send sticker: %w", err)
	}
	recordSent(ctx, h.deps, sent)

	log.DebugContext(ctx, "Quote sticker sent", "messages", len(messages), "bytes", len(data))
	return nil
}

// repliedMessage returns the message msg explicitly replies to. Inside forum
// topics every message carries the topic's creation message as its reply,
// which is not a reply the user chose.
func repliedMessage(msg *models.Message) *models.Message {
	reply := msg.ReplyToMessage
	if reply == nil {
		return nil
	}
	if reply.ForumTopicCreated != nil || (msg.IsTopicMessage && reply.ID == msg.MessageThreadID) {
		return nil
	}
	return reply
}

func (h quoteHandler) reply(ctx context.Context, s Sender, msg *models.Message, text string) {
	sent, err := s.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		MessageThreadID: msg.MessageThreadID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", msg.Chat.ID)
		return
	}
	recordSent(ctx, h.deps, sent)
}
