package payments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trust-ledger/core/fields"
	"trust-ledger/core/retry"
	"trust-ledger/core/secrets"

	"go.uber.org/zap"
)

// PageSize is the fixed page size used for cursor-paged requests.
const PageSize = 100

const (
	keyAPIKey = "payments.api_key"

	maxBodyBytes  = 16 << 20
	maxErrorBytes = 512
)

// Client talks to the payment platform.
type Client struct {
	cfg     Config
	http    *http.Client
	secrets secrets.Store
	retry   *retry.Executor
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a payment platform client.
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
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Currency returns the configured account currency.
func (c *Client) Currency() string {
	return strings.ToLower(c.cfg.Currency)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (fields.Record, error) {
	key, err := c.apiKey(ctx)
	if err != nil {
		return nil, err
	}

	out, err := retry.Execute(ctx, c.retry, func(ctx context.Context, attempt int) (fields.Record, error) {
		if attempt > 1 {
			c.logger.Debug("Retrying payment platform request", zap.String("path", path), zap.Int("attempt", attempt))
		}
		return c.getOnce(ctx, key, path, query)
	})
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (c *Client) getOnce(ctx context.Context, key, path string, query url.Values) (fields.Record, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &retry.StatusError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	rec, err := fields.Decode(body)
	if err != nil {
		// Formatted, not wrapped: a truncated body must not match io.ErrUnexpectedEOF.
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return rec, nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBytes {
		return s[:maxErrorBytes]
	}
	return s
}
