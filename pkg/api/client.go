// Package api is the dashboard's request/response client for the backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meme-sniper/pkg/db"
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WhaleActivity fetches the bootstrap history, newest first.
func (c *Client) WhaleActivity(ctx context.Context) ([]db.WhaleActivity, error) {
	var out db.WhaleActivityResponse
	if err := c.do(ctx, http.MethodGet, "/api/whale-activity", nil, &out); err != nil {
		return nil, err
	}
	return out.Activities, nil
}

func (c *Client) TrackedAccounts(ctx context.Context) ([]string, error) {
	var out db.TrackedAccountsResponse
	if err := c.do(ctx, http.MethodGet, "/api/twitter/tracked-accounts", nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// TopTraders fetches the wallet ranking. The backend substitutes a fixed
// list when its upstream is down.
func (c *Client) TopTraders(ctx context.Context) ([]db.TopTrader, error) {
	var out db.TopTradersResponse
	if err := c.do(ctx, http.MethodGet, "/api/top-traders", nil, &out); err != nil {
		return nil, err
	}
	return out.Traders, nil
}

// SaveSettings posts the settings verbatim. Any non-2xx is a failure.
func (c *Client) SaveSettings(ctx context.Context, s db.BotSettings) error {
	return c.do(ctx, http.MethodPost, "/api/save-settings", s, nil)
}

func (c *Client) Settings(ctx context.Context) (db.BotSettings, error) {
	var out db.BotSettings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &out)
	return out, err
}

func (c *Client) Track(ctx context.Context, username string) (string, error) {
	var out db.MessageResponse
	err := c.do(ctx, http.MethodPost, "/api/twitter/track", map[string]string{"username": username}, &out)
	return out.Message, err
}

func (c *Client) Untrack(ctx context.Context, username string) (string, error) {
	var out db.MessageResponse
	err := c.do(ctx, http.MethodPost, "/api/twitter/untrack", map[string]string{"username": username}, &out)
	return out.Message, err
}

// Health returns nil when the backend answers /health with 2xx.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: malformed response: %w", method, path, err)
	}
	return nil
}

// errorMessage pulls {"message": ...} out of an error body when present.
func errorMessage(data []byte) string {
	var m db.MessageResponse
	if json.Unmarshal(data, &m) == nil && m.Message != "" {
		return m.Message
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
