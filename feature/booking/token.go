package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"trust-ledger/core/retry"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// tokenSafetyMargin is subtracted from the token lifetime before reuse.
	tokenSafetyMargin = 60 * time.Second
	// defaultTokenLifetime applies when the token endpoint omits expires_in.
	defaultTokenLifetime = time.Hour

	keyClientID     = "booking.client_id"
	keyClientSecret = "booking.client_secret"
	keyToken        = "booking.token"
)

type cachedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (t *cachedToken) usable(now time.Time) bool {
	return t != nil && t.AccessToken != "" && now.Add(tokenSafetyMargin).Before(t.ExpiresAt)
}

// accessToken returns a bearer token, reusing the cached one until it is near expiry.
// Concurrent refreshes share one exchange.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()
	if tok.usable(c.now()) {
		return tok.AccessToken, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		return c.refreshToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	if persisted := c.loadPersistedToken(ctx); persisted.usable(c.now()) {
		c.setToken(persisted)
		return persisted.AccessToken, nil
	}

	creds, err := c.Credentials(ctx)
	if err != nil {
		return "", err
	}

	tok, err := c.exchange(ctx, creds)
	if err != nil {
		return "", err
	}
	c.setToken(tok)

	raw, err := json.Marshal(tok)
	if err == nil {
		err = c.secrets.Save(ctx, keyToken, string(raw))
	}
	if err != nil {
		c.logger.Warn("Failed to persist booking platform token", zap.Error(err))
	}
	return tok.AccessToken, nil
}

// exchange performs the client-credentials grant.
func (c *Client) exchange(ctx context.Context, creds Credentials) (*cachedToken, error) {
	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     c.cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if c.cfg.Scope != "" {
		cc.Scopes = []string{c.cfg.Scope}
	}

	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return nil, &retry.StatusError{StatusCode: re.Response.StatusCode, Body: truncate(re.Body)}
		}
		return nil, err
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = c.now().Add(defaultTokenLifetime)
	}
	c.logger.Debug("Obtained booking platform token", zap.Time("expires_at", expiry))
	return &cachedToken{AccessToken: tok.AccessToken, ExpiresAt: expiry}, nil
}

func (c *Client) loadPersistedToken(ctx context.Context) *cachedToken {
	raw, ok, err := c.secrets.Read(ctx, keyToken)
	if err != nil {
		c.logger.Warn("Failed to read cached booking platform token", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var tok cachedToken
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil
	}
	return &tok
}

func (c *Client) setToken(tok *cachedToken) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

// invalidateToken drops the cached token in memory and in the secure store.
func (c *Client) invalidateToken(ctx context.Context) {
	c.setToken(nil)
	if err := c.secrets.Delete(ctx, keyToken); err != nil {
		c.logger.Debug("Ignoring failed token delete", zap.Error(err))
	}
}
