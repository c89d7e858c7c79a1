package booking

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"trust-ledger/core/fields"
	"trust-ledger/core/retry"
	"trust-ledger/core/secrets"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PageSize is the fixed page size used for every paginated request.
const PageSize = 100

const (
	maxBodyBytes  = 32 << 20
	maxErrorBytes = 512
)

// Client talks to the booking platform.
type Client struct {
	cfg     Config
	http    *http.Client
	secrets secrets.Store
	retry   *retry.Executor
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	token *cachedToken
	group singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a booking platform client.
func NewClient(cfg Config, store secrets.Store, executor *retry.Executor, logger *zap.Logger, opts ...Option) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: time.Duration(timeout) * time.Second},
		secrets: store,
		retry:   executor,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getJSON performs an authenticated GET through the retry executor.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (fields.Record, error) {
	out, err := retry.Execute(ctx, c.retry, func(ctx context.Context, attempt int) (fields.Record, error) {
		if attempt > 1 {
			c.logger.Debug("Retrying booking platform request", zap.String("path", path), zap.Int("attempt", attempt))
		}
		return c.getOnce(ctx, path, query)
	})
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (c *Client) getOnce(ctx context.Context, path string, query url.Values) (fields.Record, error) {
	body, status, err := c.send(ctx, path, query)
	if err != nil {
		return nil, err
	}

	// A rejected token is refreshed once before giving up.
	if status == http.StatusUnauthorized {
		c.invalidateToken(ctx)
		body, status, err = c.send(ctx, path, query)
		if err != nil {
			return nil, err
		}
	}

	if status < 200 || status > 299 {
		return nil, &retry.StatusError{StatusCode: status, Body: truncate(body)}
	}

	rec, err := fields.Decode(body)
	if err != nil {
		// Formatted, not wrapped: a truncated body must not match io.ErrUnexpectedEOF.
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return rec, nil
}

func (c *Client) send(ctx context.Context, path string, query url.Values) ([]byte, int, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// fetchPages walks limit/skip pages until a short page is returned.
// Page length and offset count every array element, decodable or not.
func fetchPages[T any](ctx context.Context, c *Client, path string, base url.Values, decode func(fields.Record) (T, bool)) ([]T, error) {
	var out []T
	skipped := 0

	for skip := 0; ; {
		query := url.Values{}
		for k, v := range base {
			query[k] = v
		}
		query.Set("limit", fmt.Sprint(PageSize))
		query.Set("skip", fmt.Sprint(skip))

		page, err := c.getJSON(ctx, path, query)
		if err != nil {
			return nil, err
		}

		items, ok := page.Records("results", "data")
		if !ok {
			return nil, fmt.Errorf("%w: %s: no results array", ErrDecode, path)
		}

		raw := page.Len("results", "data")
		skipped += raw - len(items)

		for _, item := range items {
			v, ok := decode(item)
			if !ok {
				skipped++
				continue
			}
			out = append(out, v)
		}

		if raw < PageSize {
			break
		}
		skip += raw
	}

	if skipped > 0 {
		c.logger.Warn("Skipped undecodable records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return out, nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBytes {
		return s[:maxErrorBytes]
	}
	return s
}
