package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/punquote/internal/config"
	"github.com/edgard/punquote/internal/quotly"
)

type fakeSender struct {
	mu          sync.Mutex
	messages    []*bot.SendMessageParams
	stickers    []*bot.SendStickerParams
	stickerData [][]byte
	actions     []*bot.SendChatActionParams
	stickerErr  error
	nextID      int
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, params)
	return f.sent(params.ChatID), nil
}

func (f *fakeSender) SendSticker(_ context.Context, params *bot.SendStickerParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stickerErr != nil {
		return nil, f.stickerErr
	}
	f.stickers = append(f.stickers, params)
	if upload, ok := params.Sticker.(*models.InputFileUpload); ok {
		data, _ := io.ReadAll(upload.Data)
		f.stickerData = append(f.stickerData, data)
	}
	sent := f.sent(params.ChatID)
	sent.Sticker = &models.Sticker{FileID: "sent-sticker"}
	return sent, nil
}

// sent builds the message Telegram returns for an outgoing message. Callers hold mu.
func (f *fakeSender) sent(chatID any) *models.Message {
	f.nextID++
	id, _ := chatID.(int64)
	return &models.Message{ID: 1000 + f.nextID, Chat: models.Chat{ID: id}}
}

func (f *fakeSender) SendChatAction(_ context.Context, params *bot.SendChatActionParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, params)
	return true, nil
}

func (f *fakeSender) actionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.actions)
}

type fetchCall struct {
	chatID         int64
	startID, endID int
	includeReplies bool
}

type fakeHistory struct {
	messages []*quotly.RawMessage
	err      error
	calls    []fetchCall
	recorded []*models.Message
}

func (f *fakeHistory) Record(_ context.Context, m *models.Message) error {
	f.recorded = append(f.recorded, m)
	return nil
}

func (f *fakeHistory) GetMessages(_ context.Context, chatID int64, startID, endID int, includeReplies bool) ([]*quotly.RawMessage, error) {
	f.calls = append(f.calls, fetchCall{chatID, startID, endID, includeReplies})
	return f.messages, f.err
}

type fakeGenerator struct {
	image         string
	err           error
	calls         int
	preserveMedia bool
}

func (f *fakeGenerator) Generate(_ context.Context, _ []*quotly.RawMessage, preserveMedia bool) (string, error) {
	f.calls++
	f.preserveMedia = preserveMedia
	return f.image, f.err
}

func testMessages() config.MessagesConfig {
	return config.MessagesConfig{
		Welcome:       "welcome",
		Help:          "help",
		ReplyRequired: "reply please",
		ServerError:   "server %d: %s",
		GenericError:  "generic: %v",
	}
}

func newQuoteHandler(h *fakeHistory, g *fakeGenerator) quoteHandler {
	return quoteHandler{deps: HandlerDeps{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:  &config.Config{Messages: testMessages()},
		History: h,
		Quotly:  g,
	}}
}

func commandMessage(text string, replyTo int) *models.Message {
	msg := &models.Message{
		ID:   50,
		Chat: models.Chat{ID: -100, Type: models.ChatTypeSupergroup},
		Text: text,
	}
	if replyTo != 0 {
		msg.ReplyToMessage = &models.Message{ID: replyTo, Chat: msg.Chat}
	}
	return msg
}

func fetched() []*quotly.RawMessage {
	return []*quotly.RawMessage{{ID: 40, ChatID: -100, From: &quotly.Peer{ID: 1, FirstName: "Ann"}, Text: "hi"}}
}

func TestQuoteRequiresReply(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{}
	gen := &fakeGenerator{}
	sender := &fakeSender{}

	if err := newQuoteHandler(history, gen).quote(context.Background(), sender, commandMessage("/q", 0)); err != nil {
		t.Fatalf("quote: %v", err)
	}

	if len(sender.messages) != 1 || sender.messages[0].Text != "reply please" {
		t.Fatalf("expected reply-required message, got %+v", sender.messages)
	}
	if sender.messages[0].ReplyParameters == nil || sender.messages[0].ReplyParameters.MessageID != 50 {
		t.Errorf("reply should target the command message")
	}
	if len(history.calls) != 0 || gen.calls != 0 {
		t.Errorf("nothing should be fetched or generated")
	}
	if sender.actionCount() != 0 {
		t.Errorf("indicator should not be shown")
	}
}

func TestQuoteSendsSticker(t *testing.T) {
	t.Parallel()

	image := []byte("RIFF....WEBP")
	history := &fakeHistory{messages: fetched()}
	gen := &fakeGenerator{image: base64.StdEncoding.EncodeToString(image)}
	sender := &fakeSender{}

	if err := newQuoteHandler(history, gen).quote(context.Background(), sender, commandMessage("/q -3 r m", 40)); err != nil {
		t.Fatalf("quote: %v", err)
	}

	want := fetchCall{chatID: -100, startID: 38, endID: 40, includeReplies: true}
	if len(history.calls) != 1 || history.calls[0] != want {
		t.Errorf("fetch calls = %+v, want %+v", history.calls, want)
	}
	if !gen.preserveMedia {
		t.Errorf("media flag not passed to generator")
	}
	if len(sender.stickers) != 1 {
		t.Fatalf("expected one sticker, got %d", len(sender.stickers))
	}

	params := sender.stickers[0]
	upload, ok := params.Sticker.(*models.InputFileUpload)
	if !ok {
		t.Fatalf("sticker is %T, want *models.InputFileUpload", params.Sticker)
	}
	if upload.Filename != "sticker.webp" {
		t.Errorf("filename = %q", upload.Filename)
	}
	if string(sender.stickerData[0]) != string(image) {
		t.Errorf("sticker bytes = %q, want %q", sender.stickerData[0], image)
	}
	if params.ReplyParameters == nil || params.ReplyParameters.MessageID != 50 {
		t.Errorf("sticker should reply to the command message")
	}

	if sender.actionCount() == 0 {
		t.Fatal("indicator was not shown")
	}
	if sender.actions[0].Action != models.ChatActionChooseSticker {
		t.Errorf("action = %q", sender.actions[0].Action)
	}
	if len(sender.messages) != 0 {
		t.Errorf("unexpected text messages: %+v", sender.messages)
	}

	if len(history.recorded) != 1 || history.recorded[0].Sticker == nil || history.recorded[0].Chat.ID != -100 {
		t.Errorf("sent sticker not recorded: %+v", history.recorded)
	}
}

func TestQuoteRecordsErrorReply(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{messages: fetched()}
	sender := &fakeSender{}
	gen := &fakeGenerator{err: &quotly.ServerError{Code: 500, Message: "boom"}}

	_ = newQuoteHandler(history, gen).quote(context.Background(), sender, commandMessage("/q", 40))

	if len(history.recorded) != 1 || history.recorded[0].ID == 0 {
		t.Fatalf("error reply not recorded: %+v", history.recorded)
	}
}

func TestQuoteInForumTopicRequiresExplicitReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		reply     *models.Message
		wantFetch bool
	}{
		{
			name:  "implicit reply to topic root",
			reply: &models.Message{ID: 7},
		},
		{
			name:  "topic creation service message",
			reply: &models.Message{ID: 3, ForumTopicCreated: &models.ForumTopicCreated{Name: "memes"}},
		},
		{
			name:      "explicit reply inside topic",
			reply:     &models.Message{ID: 40},
			wantFetch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := commandMessage("/q", 0)
			msg.IsTopicMessage = true
			msg.MessageThreadID = 7
			msg.ReplyToMessage = tt.reply

			history := &fakeHistory{}
			sender := &fakeSender{}
			if err := newQuoteHandler(history, &fakeGenerator{}).quote(context.Background(), sender, msg); err != nil {
				t.Fatalf("quote: %v", err)
			}

			if got := len(history.calls) == 1; got != tt.wantFetch {
				t.Errorf("fetched = %v, want %v", got, tt.wantFetch)
			}
			gotNotice := len(sender.messages) == 1 && sender.messages[0].Text == "reply please"
			if gotNotice == tt.wantFetch {
				t.Errorf("reply-required notice sent = %v, want %v", gotNotice, !tt.wantFetch)
			}
			if len(sender.messages) == 1 && sender.messages[0].MessageThreadID != 7 {
				t.Errorf("notice thread = %d, want 7", sender.messages[0].MessageThreadID)
			}
		})
	}
}

func TestQuoteGenerationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		genErr  error
		wantMsg string
	}{
		{
			name:    "server error",
			genErr:  &quotly.ServerError{Code: 502, Message: "API is down"},
			wantMsg: "server 502: API is down",
		},
		{
			name:    "transport error",
			genErr:  errors.New("connection refused"),
			wantMsg: "generic: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sender := &fakeSender{}
			gen := &fakeGenerator{err: tt.genErr}
			err := newQuoteHandler(&fakeHistory{messages: fetched()}, gen).quote(context.Background(), sender, commandMessage("/q", 40))

			if !errors.Is(err, tt.genErr) {
				t.Fatalf("error = %v, want wrapped %v", err, tt.genErr)
			}
			if len(sender.messages) != 1 || sender.messages[0].Text != tt.wantMsg {
				t.Fatalf("messages = %+v, want %q", sender.messages, tt.wantMsg)
			}
			if len(sender.stickers) != 0 {
				t.Errorf("no sticker expected")
			}
			if sender.actionCount() == 0 {
				t.Errorf("indicator should have been shown before generation")
			}
		})
	}
}

func TestQuoteSilentPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		history *fakeHistory
		gen     *fakeGenerator
		wantGen int
	}{
		{name: "nothing fetched", history: &fakeHistory{}, gen: &fakeGenerator{}, wantGen: 0},
		{name: "null image", history: &fakeHistory{messages: fetched()}, gen: &fakeGenerator{image: ""}, wantGen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sender := &fakeSender{}
			if err := newQuoteHandler(tt.history, tt.gen).quote(context.Background(), sender, commandMessage("/q", 40)); err != nil {
				t.Fatalf("quote: %v", err)
			}
			if tt.gen.calls != tt.wantGen {
				t.Errorf("generator calls = %d, want %d", tt.gen.calls, tt.wantGen)
			}
			if len(sender.messages) != 0 || len(sender.stickers) != 0 {
				t.Errorf("nothing should be sent, got %d messages and %d stickers", len(sender.messages), len(sender.stickers))
			}
		})
	}
}

func TestQuoteFetchAndDecodeErrors(t *testing.T) {
	t.Parallel()

	t.Run("fetch", func(t *testing.T) {
		t.Parallel()
		fetchErr := errors.New("db locked")
		sender := &fakeSender{}
		gen := &fakeGenerator{}

		err := newQuoteHandler(&fakeHistory{err: fetchErr}, gen).quote(context.Background(), sender, commandMessage("/q", 40))
		if !errors.Is(err, fetchErr) {
			t.Fatalf("error = %v, want %v", err, fetchErr)
		}
		if gen.calls != 0 {
			t.Errorf("generator should not be called")
		}
		if len(sender.messages) != 1 || sender.messages[0].Text != "generic: db locked" {
			t.Errorf("messages = %+v", sender.messages)
		}
	})

	t.Run("decode", func(t *testing.T) {
		t.Parallel()
		sender := &fakeSender{}

		err := newQuoteHandler(&fakeHistory{messages: fetched()}, &fakeGenerator{image: "%%%"}).quote(context.Background(), sender, commandMessage("/q", 40))
		if err == nil {
			t.Fatal("expected decode error")
		}
		if len(sender.messages) != 1 || len(sender.stickers) != 0 {
			t.Errorf("expected one error message and no sticker, got %d and %d", len(sender.messages), len(sender.stickers))
		}
	})

	t.Run("send", func(t *testing.T) {
		t.Parallel()
		sendErr := errors.New("too large")
		sender := &fakeSender{stickerErr: sendErr}
		gen := &fakeGenerator{image: base64.StdEncoding.EncodeToString([]byte("webp"))}

		err := newQuoteHandler(&fakeHistory{messages: fetched()}, gen).quote(context.Background(), sender, commandMessage("/q", 40))
		if !errors.Is(err, sendErr) {
			t.Fatalf("error = %v, want %v", err, sendErr)
		}
	})
}

func TestStartChatActionRelease(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	release := startChatAction(context.Background(), sender, log, 1, 0, models.ChatActionChooseSticker)
	if sender.actionCount() != 1 {
		t.Fatalf("initial action count = %d, want 1", sender.actionCount())
	}

	done := make(chan struct{})
	go func() {
		release()
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("release did not return")
	}

	if got := sender.actionCount(); got != 1 {
		t.Errorf("actions after release = %d, want 1", got)
	}
}

func TestStartAndHelpSendConfiguredText(t *testing.T) {
	t.Parallel()

	deps := HandlerDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: &config.Config{Messages: testMessages()},
	}
	update := &models.Update{ID: 1, Message: commandMessage("/start", 0)}

	sender := &fakeSender{}
	startHandler{deps}.handle(context.Background(), sender, update)
	helpHandler{deps}.handle(context.Background(), sender, update)

	if len(sender.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sender.messages))
	}
	if sender.messages[0].Text != "welcome" || sender.messages[1].Text != "help" {
		t.Errorf("texts = %q, %q", sender.messages[0].Text, sender.messages[1].Text)
	}
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()

	handlers := RegisterAllCommands(HandlerDeps{BotUsername: "punquote_bot"})
	for _, cmd := range []string{"/start", "/help", "/q"} {
		h, ok := handlers[cmd]
		if !ok {
			t.Errorf("command %s not registered", cmd)
			continue
		}
		if "/"+h.Command != cmd {
			t.Errorf("command %s registered as %q", cmd, h.Command)
		}
		if h.Handler == nil || h.Match == nil {
			t.Errorf("command %s has nil handler or matcher", cmd)
			continue
		}
		if !h.Match(commandUpdate(cmd + "@punquote_bot")) {
			t.Errorf("command %s does not match its addressed form", cmd)
		}
	}
}
