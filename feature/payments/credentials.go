package payments

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// SaveCredentials stores the secret API key.
func (c *Client) SaveCredentials(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("api key is required")
	}
	return c.secrets.Save(ctx, keyAPIKey, apiKey)
}

// HasCredentials reports whether an API key is stored. Store failures count as absent.
func (c *Client) HasCredentials(ctx context.Context) bool {
	_, err := c.apiKey(ctx)
	return err == nil
}

// ClearCredentials removes the API key. A failed delete is ignored.
func (c *Client) ClearCredentials(ctx context.Context) {
	if err := c.secrets.Delete(ctx, keyAPIKey); err != nil {
		c.logger.Debug("Ignoring failed credential delete", zap.String("key", keyAPIKey), zap.Error(err))
	}
}

// Authenticate validates the stored key with one balance request.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.getJSON(ctx, "/balance", nil)
	return err
}

func (c *Client) apiKey(ctx context.Context) (string, error) {
	key, ok, err := c.secrets.Read(ctx, keyAPIKey)
	if err != nil {
		return "", err
	}
	if !ok || key == "" {
		return "", ErrMissingCredentials
	}
	return key, nil
}
