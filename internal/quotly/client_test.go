package quotly

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/edgard/punquote/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(config.QuotlyConfig{URL: srv.URL + "/quote/generate", Scale: 2}, "123:secret", discardLogger(), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, &calls
}

func textMessage(text string) *RawMessage {
	return &RawMessage{ID: 1, ChatID: 99, From: &Peer{ID: 5, FirstName: "Ann"}, Text: text}
}

func TestGenerateSuccess(t *testing.T) {
	t.Parallel()

	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/quote/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("botToken"); got != "123:secret" {
			t.Errorf("botToken = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["type"] != "quote" || req["format"] != "webp" {
			t.Errorf("type/format = %v/%v", req["type"], req["format"])
		}
		if req["width"] != float64(512) || req["height"] != float64(512) || req["scale"] != float64(2) {
			t.Errorf("size/scale = %v/%v/%v", req["width"], req["height"], req["scale"])
		}
		msgs, _ := req["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("len(messages) = %d, want 2", len(msgs))
		} else if first, _ := msgs[0].(map[string]any); first["text"] != "first" {
			t.Errorf("messages out of order: %v", msgs)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"image":"aW1hZ2U="}}`)
	})

	image, err := c.Generate(context.Background(), []*RawMessage{
		textMessage("first"),
		{ID: 2, ChatID: 99},
		textMessage("second"),
	}, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if image != "aW1hZ2U=" {
		t.Errorf("image = %q", image)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestGenerateNothingToQuote(t *testing.T) {
	t.Parallel()

	c, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for _, batch := range [][]*RawMessage{nil, {{ID: 1}, {ID: 2, From: &Peer{ID: 1}}}} {
		image, err := c.Generate(context.Background(), batch, true)
		if err != nil || image != "" {
			t.Errorf("Generate() = %q, %v, want empty result", image, err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want no request", calls.Load())
	}
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "explicit failure",
			status:   http.StatusOK,
			body:     `{"ok": false, "error": {"code": 4, "message": "bad request"}}`,
			wantCode: 4,
			wantMsg:  "bad request",
		},
		{
			name:     "cloudflare page",
			status:   http.StatusBadGateway,
			body:     "<html><title>502 | cloudflare</title></html>",
			wantCode: http.StatusBadGateway,
			wantMsg:  "API is down",
		},
		{
			name:     "plain text body",
			status:   http.StatusServiceUnavailable,
			body:     "upstream unavailable",
			wantCode: http.StatusServiceUnavailable,
			wantMsg:  "upstream unavailable",
		},
		{
			name:     "ok without image",
			status:   http.StatusOK,
			body:     `{"ok": true, "result": {}}`,
			wantCode: http.StatusOK,
			wantMsg:  "response contains no image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Generate(context.Background(), []*RawMessage{textMessage("hi")}, false)
			var serverErr *ServerError
			if !errors.As(err, &serverErr) {
				t.Fatalf("Generate() error = %v, want *ServerError", err)
			}
			if serverErr.Code != tt.wantCode || serverErr.Message != tt.wantMsg {
				t.Errorf("ServerError = {%d %q}, want {%d %q}", serverErr.Code, serverErr.Message, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(config.QuotlyConfig{}, "token", nil); err == nil {
		t.Error("NewClient() with empty url should fail")
	}
	if _, err := NewClient(config.QuotlyConfig{URL: "https://example.com"}, "", nil); err == nil {
		t.Error("NewClient() with empty token should fail")
	}
}
