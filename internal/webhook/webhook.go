// Package webhook sends chat messages to the automation webhook and reads
// back its reply.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
)

// DefaultReply is used when the webhook answers with an empty body.
const DefaultReply = "Message received"

type Source interface {
	Webhook(ctx context.Context) (settings.Webhook, error)
}

type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Request struct {
	Message   string `json:"message"`
	Media     string `json:"media,omitempty"`
	Timestamp string `json:"timestamp"`
	User      *User  `json:"user,omitempty"`
}

// Reply is the webhook's answer. Raw holds the full JSON object when the
// webhook sent one.
type Reply struct {
	Message string          `json:"message"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// StatusError is a non-2xx answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

type Client struct {
	src  Source
	http *http.Client
	log  *slog.Logger
	now  func() time.Time
}

func New(src Source, hc *http.Client, log *slog.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{src: src, http: hc, log: log, now: time.Now}
}

// Send posts one message. media is a data URI (image or voice) or empty.
func (c *Client) Send(ctx context.Context, message, media string, user *User) (Reply, error) {
	cfg, err := c.src.Webhook(ctx)
	if err != nil {
		return Reply{}, err
	}
	body, err := json.Marshal(Request{
		Message:   message,
		Media:     media,
		Timestamp: c.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		User:      user,
	})
	if err != nil {
		return Reply{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("webhook read: %w", err)
	}
	c.log.Debug("webhook answered", "status", resp.StatusCode, "bytes", len(raw), "has_media", media != "")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Error("webhook error response", "status", resp.StatusCode, "body", truncate(string(raw), 500))
		return Reply{}, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return ParseReply(raw), nil
}

// ParseReply accepts a JSON object with a message field, a JSON string, any
// other text, or nothing at all.
func ParseReply(raw []byte) Reply {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return Reply{Message: DefaultReply}
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) == nil {
		r := Reply{Raw: json.RawMessage(text)}
		if m, ok := obj["message"]; ok {
			var s string
			if json.Unmarshal(m, &s) == nil {
				r.Message = s
			} else {
				r.Message = string(m)
			}
		}
		return r
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return Reply{Message: s}
	}
	return Reply{Message: text}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
