// Package woo talks to the WooCommerce REST API (wc/v3) of the configured store.
package woo

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
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
)

const apiPrefix = "/wp-json/wc/v3"

// Credentials supplies the current store settings for every request.
type Credentials interface {
	Store(ctx context.Context) (settings.Store, error)
}

// APIError is a non-2xx answer from the store. Message is the store's own
// text and is shown to staff as is.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("store returned HTTP %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return orders.ErrNotFound
	}
	return nil
}

// NetworkError wraps transport failures: DNS, refused connections, timeouts.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return "store " + e.Op + ": " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

type Client struct {
	creds Credentials
	http  *http.Client
	log   *slog.Logger
}

func New(creds Credentials, hc *http.Client, log *slog.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{creds: creds, http: hc, log: log}
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	s, err := c.creds.Store(ctx)
	if err != nil {
		return err
	}
	return c.doWith(ctx, s, method, path, q, in, out)
}

func (c *Client) doWith(ctx context.Context, s settings.Store, method, path string, q url.Values, in, out any) error {
	u := s.BaseURL() + apiPrefix + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.SetBasicAuth(s.ConsumerKey, s.ConsumerSecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: "read " + path, Err: err}
	}
	c.log.Debug("store request", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// apiError reads the store's {"code","message"} body, or keeps plain text.
func apiError(status int, raw []byte) *APIError {
	e := &APIError{StatusCode: status, Body: string(raw)}
	var wire struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &wire) == nil && wire.Message != "" {
		e.Code = wire.Code
		e.Message = wire.Message
		return e
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 512 {
		e.Message = text
	}
	return e
}

// IsClientError reports a 4xx from the store, i.e. a validation message.
func IsClientError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode >= 400 && ae.StatusCode < 500
}

// ---- orders ----

func (c *Client) ListOrders(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	q := url.Values{}
	for k, v := range f.Params {
		q.Set(k, v)
	}
	q.Set("per_page", strconv.Itoa(orders.PageSize))
	q.Set("orderby", "date")
	q.Set("order", "desc")
	if len(f.Statuses) > 0 {
		parts := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			parts = append(parts, string(s))
		}
		q.Set("status", strings.Join(parts, ","))
	}
	var out []orders.Order
	if err := c.do(ctx, http.MethodGet, "/orders", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	var o orders.Order
	err := c.do(ctx, http.MethodGet, "/orders/"+strconv.FormatInt(id, 10), nil, nil, &o)
	return o, err
}

func (c *Client) UpdateOrder(ctx context.Context, id int64, p orders.OrderPatch) (orders.Order, error) {
	var o orders.Order
	err := c.do(ctx, http.MethodPut, "/orders/"+strconv.FormatInt(id, 10), nil, p, &o)
	return o, err
}

func (c *Client) CreateOrder(ctx context.Context, n orders.NewOrder) (orders.Order, error) {
	var o orders.Order
	err := c.do(ctx, http.MethodPost, "/orders", nil, n, &o)
	return o, err
}
