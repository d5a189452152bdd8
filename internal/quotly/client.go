package quotly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/edgard/punquote/internal/config"
)

const (
	requestType   = "quote"
	requestFormat = "webp"
	stickerSize   = 512
)

// ServerError is a failure reported by the Quotly service, or an unreadable
// response from it.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("quotly server error %d: %s", e.Code, e.Message)
}

// Generator produces a base64 encoded sticker image for a batch of messages.
type Generator interface {
	Generate(ctx context.Context, messages []*RawMessage, preserveMedia bool) (string, error)
}

// Client is an HTTP client for the Quotly generate endpoint.
type Client struct {
	endpoint   string
	botToken   string
	scale      int
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Quotly client. botToken is forwarded to the service so
// it can download avatars and media from Telegram.
func NewClient(cfg config.QuotlyConfig, botToken string, log *slog.Logger, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("quotly url is required")
	}
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid quotly url: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		endpoint:   cfg.URL,
		botToken:   botToken,
		scale:      cfg.Scale,
		httpClient: &http.Client{},
		log:        log.With("component", "quotly_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate normalizes messages, asks Quotly for a sticker and returns the
// base64 encoded image. It returns an empty string without calling the service
// when no message is worth quoting. Service failures are returned as *ServerError.
func (c *Client) Generate(ctx context.Context, messages []*RawMessage, preserveMedia bool) (string, error) {
	quoted := make([]*QuotedMessage, 0, len(messages))
	for _, m := range messages {
		if q := Normalize(m, preserveMedia); q != nil {
			quoted = append(quoted, q)
		}
	}

	if len(quoted) == 0 {
		c.log.DebugContext(ctx, "No quotable messages, skipping request", "input_count", len(messages))
		return "", nil
	}

	body, err := json.Marshal(StickerRequest{
		Type:     requestType,
		Format:   requestFormat,
		Width:    stickerSize,
		Height:   stickerSize,
		Scale:    c.scale,
		Messages: quoted,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode quote request: %w", err)
	}

	status, respBody, err := c.post(ctx, body)
	if err != nil {
		return "", err
	}
	c.log.DebugContext(ctx, "Quotly responded", "status", status, "messages", len(quoted), "body_size", len(respBody))

	return parseResponse(status, respBody)
}

func (c *Client) post(ctx context.Context, body []byte) (int, []byte, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid quotly url: %w", err)
	}
	q := u.Query()
	q.Set("botToken", c.botToken)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The url error would echo the bot token.
		var ue *url.Error
		if errors.As(err, &ue) {
			return 0, nil, fmt.Errorf("quotly request failed: %s %s: %w", ue.Op, c.endpoint, ue.Err)
		}
		return 0, nil, fmt.Errorf("quotly request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.WarnContext(ctx, "Failed to close response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read quotly response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func parseResponse(status int, body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		msg := string(body)
		if strings.Contains(msg, "cloudflare") {
			msg = "API is down"
		}
		return "", &ServerError{Code: status, Message: msg}
	}

	if !resp.OK {
		if resp.Error == nil {
			return "", &ServerError{Code: status, Message: "unknown error"}
		}
		return "", &ServerError{Code: resp.Error.Code, Message: resp.Error.Message}
	}

	if resp.Result == nil || resp.Result.Image == "" {
		return "", &ServerError{Code: status, Message: "response contains no image"}
	}
	return resp.Result.Image, nil
}
