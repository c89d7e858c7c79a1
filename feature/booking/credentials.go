package booking

import (
	"context"
	"errors"
	"net/url"

	"go.uber.org/zap"
)

// Credentials are the OAuth2 client credentials issued by the booking platform.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// SaveCredentials stores new credentials and drops any token issued for the old ones.
func (c *Client) SaveCredentials(ctx context.Context, creds Credentials) error {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return errors.New("client id and client secret are required")
	}
	if err := c.secrets.Save(ctx, keyClientID, creds.ClientID); err != nil {
		return err
	}
	if err := c.secrets.Save(ctx, keyClientSecret, creds.ClientSecret); err != nil {
		return err
	}
	c.invalidateToken(ctx)
	return nil
}

// Credentials returns the stored credentials or ErrMissingCredentials.
func (c *Client) Credentials(ctx context.Context) (Credentials, error) {
	id, okID, err := c.secrets.Read(ctx, keyClientID)
	if err != nil {
		return Credentials{}, err
	}
	secret, okSecret, err := c.secrets.Read(ctx, keyClientSecret)
	if err != nil {
		return Credentials{}, err
	}
	if !okID || !okSecret || id == "" || secret == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return Credentials{ClientID: id, ClientSecret: secret}, nil
}

// HasCredentials reports whether credentials are stored. Store failures count as absent.
func (c *Client) HasCredentials(ctx context.Context) bool {
	_, err := c.Credentials(ctx)
	return err == nil
}

// ClearCredentials removes credentials and the cached token. Failed deletes are ignored.
func (c *Client) ClearCredentials(ctx context.Context) {
	for _, key := range []string{keyClientID, keyClientSecret} {
		if err := c.secrets.Delete(ctx, key); err != nil {
			c.logger.Debug("Ignoring failed credential delete", zap.String("key", key), zap.Error(err))
		}
	}
	c.invalidateToken(ctx)
}

// Authenticate validates the stored credentials with a fresh token and one small request.
func (c *Client) Authenticate(ctx context.Context) error {
	if _, err := c.Credentials(ctx); err != nil {
		return err
	}
	c.invalidateToken(ctx)

	query := url.Values{}
	query.Set("limit", "1")
	query.Set("fields", "_id")
	_, err := c.getJSON(ctx, "/listings", query)
	return err
}
