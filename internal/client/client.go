// Package client is a typed wrapper over the backend's /sync REST endpoints.
// It keeps no state between calls: no caching, no automatic retries, and every
// failure is returned to the caller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"syncqueue-client/internal/auth"
	"syncqueue-client/internal/logger"
	"syncqueue-client/internal/syncqueue"
)

const RequestIDHeader = "X-Request-ID"

type Client struct {
	baseURL string
	http    *http.Client
	tokens  auth.TokenSource
	now     func() time.Time
}

type Option func(*Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a client for baseURL, e.g. "https://host/api"; "/sync/..." is
// appended to it.
func New(baseURL string, timeout time.Duration, tokens auth.TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/sync",
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ListAll(ctx context.Context) ([]syncqueue.Item, error) {
	return c.list(ctx, "/queue")
}

func (c *Client) ListByStatus(ctx context.Context, status syncqueue.Status) ([]syncqueue.Item, error) {
	return c.list(ctx, "/queue/status/"+url.PathEscape(string(status)))
}

func (c *Client) ListPending(ctx context.Context) ([]syncqueue.Item, error) {
	return c.ListByStatus(ctx, syncqueue.StatusPending)
}

func (c *Client) ListFailed(ctx context.Context) ([]syncqueue.Item, error) {
	return c.ListByStatus(ctx, syncqueue.StatusFailed)
}

func (c *Client) Get(ctx context.Context, id int64) (syncqueue.Item, error) {
	var it syncqueue.Item
	if err := c.do(ctx, http.MethodGet, itemPath("/queue/", id), &it); err != nil {
		return syncqueue.Item{}, err
	}
	if err := it.Validate(); err != nil {
		return syncqueue.Item{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return it, nil
}

func (c *Client) Stats(ctx context.Context) (syncqueue.Stats, error) {
	var s syncqueue.Stats
	if err := c.do(ctx, http.MethodGet, "/stats", &s); err != nil {
		return syncqueue.Stats{}, err
	}
	return s, nil
}

// Retry asks the backend to reconcile one item again and returns it as
// updated. A stale id yields an error matching ErrNotFound.
func (c *Client) Retry(ctx context.Context, id int64) (syncqueue.Item, error) {
	var it syncqueue.Item
	if err := c.do(ctx, http.MethodPost, itemPath("/retry/", id), &it); err != nil {
		return syncqueue.Item{}, err
	}
	if err := it.Validate(); err != nil {
		return syncqueue.Item{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return it, nil
}

func (c *Client) RetryAllFailed(ctx context.Context) (syncqueue.RetryAllResult, error) {
	var res syncqueue.RetryAllResult
	err := c.do(ctx, http.MethodPost, "/retry-all", &res)
	return res, err
}

// Clear deletes one item. A 404 means someone else already removed it and is
// reported as success.
func (c *Client) Clear(ctx context.Context, id int64) error {
	err := c.do(ctx, http.MethodDelete, itemPath("/queue/", id), nil)
	if errors.Is(err, ErrNotFound) {
		logger.Log.Debug("Sync item already cleared", zap.Int64("id", id))
		return nil
	}
	return err
}

func (c *Client) ClearAllSynced(ctx context.Context) (syncqueue.ClearResult, error) {
	var res syncqueue.ClearResult
	err := c.do(ctx, http.MethodDelete, "/queue/synced", &res)
	return res, err
}

func (c *Client) ClearAllFailed(ctx context.Context) (syncqueue.ClearResult, error) {
	var res syncqueue.ClearResult
	err := c.do(ctx, http.MethodDelete, "/queue/failed", &res)
	return res, err
}

// ForceSyncAll asks the backend to reconcile every PENDING item now.
func (c *Client) ForceSyncAll(ctx context.Context) (syncqueue.SyncAllResult, error) {
	var res syncqueue.SyncAllResult
	err := c.do(ctx, http.MethodPost, "/sync-all", &res)
	return res, err
}

func (c *Client) list(ctx context.Context, path string) ([]syncqueue.Item, error) {
	var items []syncqueue.Item
	if err := c.do(ctx, http.MethodGet, path, &items); err != nil {
		return nil, err
	}
	if err := syncqueue.ValidateAll(items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if items == nil {
		items = []syncqueue.Item{}
	}
	return items, nil
}

func itemPath(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

// do sends one request and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return &StatusError{Method: method, Path: path, StatusCode: http.StatusUnauthorized, Message: err.Error()}
	}
	if err := auth.CheckExpiry(token, c.now()); err != nil {
		return &StatusError{Method: method, Path: path, StatusCode: http.StatusUnauthorized, Message: err.Error()}
	}

	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Log.Warn("Sync request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	logger.Log.Debug("Sync request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", reqID),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidResponse, method, path, err)
	}
	return nil
}

// errorMessage pulls "message" or "error" out of a JSON error body.
func errorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(b, &payload) != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
