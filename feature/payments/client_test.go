package payments

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"trust-ledger/core/retry"
	"trust-ledger/core/secrets"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, withKey bool) (*Client, *secrets.MemoryStore) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := secrets.NewMemoryStore()
	if withKey {
		require.NoError(t, store.Save(context.Background(), keyAPIKey, "sk_test_123"))
	}
	ex := retry.New(retry.Config{MaxAttempts: 3, InitialDelayMS: 1, MaxDelayMS: 5, Multiplier: 2},
		retry.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	return NewClient(Config{BaseURL: srv.URL + "/v1", Currency: "USD"}, store, ex, zap.NewNop()), store
}

func TestToDecimal(t *testing.T) {
	assert.True(t, decimal.RequireFromString("12.34").Equal(ToDecimal(1234, "usd")))
	assert.True(t, decimal.RequireFromString("-0.05").Equal(ToDecimal(-5, "EUR")))
	assert.True(t, decimal.NewFromInt(1234).Equal(ToDecimal(1234, "JPY")))
	assert.True(t, decimal.NewFromInt(500).Equal(ToDecimal(500, "krw")))
}

func TestBalance_EffectiveAvailableAndHoldback(t *testing.T) {
	b := Balance{
		Available:        []Amount{{Currency: "usd", Minor: 0}, {Currency: "eur", Minor: 700}},
		InstantAvailable: []Amount{{Currency: "usd", Minor: 25000}},
		Pending:          []Amount{{Currency: "usd", Minor: 10050}, {Currency: "eur", Minor: 99}},
		Reserved:         []Amount{{Currency: "usd", Minor: 2000}},
	}

	assert.True(t, decimal.RequireFromString("250").Equal(b.EffectiveAvailable("usd")))
	assert.True(t, decimal.RequireFromString("7").Equal(b.EffectiveAvailable("EUR")))
	assert.True(t, decimal.RequireFromString("120.50").Equal(b.Holdback("usd")))
	assert.True(t, decimal.RequireFromString("0.99").Equal(b.Holdback("eur")))
	assert.True(t, b.Holdback("gbp").IsZero())
}

func TestFetchBalance(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/balance", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"object": "balance",
			"available": [{"amount": 0, "currency": "usd"}],
			"instant_available": [{"amount": "4200", "currency": "USD"}],
			"pending": [{"amount": 1500, "currency": "usd"}, {"currency": "usd"}],
			"connect_reserved": [{"amount": 500, "currency": "usd"}]
		}`))
	}, true)

	b, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Len(t, b.Pending, 1, "amount-less entry is dropped")
	assert.True(t, decimal.NewFromInt(42).Equal(b.EffectiveAvailable(c.Currency())))
	assert.True(t, decimal.NewFromInt(20).Equal(b.Holdback(c.Currency())))
}

func TestFetchBalance_MissingCredentials(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, false)

	_, err := c.FetchBalance(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Zero(t, calls.Load())
}

func TestFetchBalance_RateLimitedThenOK(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"available": [{"amount": 100, "currency": "usd"}]}`))
	}, true)

	b, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, decimal.NewFromInt(1).Equal(b.EffectiveAvailable("usd")))
}

func TestAuthenticate_InvalidKeyIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid API Key provided"}}`))
	}, true)

	err := c.Authenticate(context.Background())
	var status *retry.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusUnauthorized, status.StatusCode)
	assert.Contains(t, status.Body, "Invalid API Key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchBalance_MalformedPayload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}, true)

	_, err := c.FetchBalance(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestFetchBalance_TruncatedBodyIsNotRetried(t *testing.T) {
	for _, body := range []string{``, `{"available": [`} {
		t.Run(fmt.Sprintf("%q", body), func(t *testing.T) {
			var calls atomic.Int32
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				_, _ = w.Write([]byte(body))
			}, true)

			_, err := c.FetchBalance(context.Background())
			var fatal *retry.NonRetryableError
			require.ErrorAs(t, err, &fatal)
			assert.ErrorIs(t, err, ErrDecode)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestFetchPayouts_FollowsCursor(t *testing.T) {
	var cursors []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "1717200000", r.URL.Query().Get("created[gte]"))
		after := r.URL.Query().Get("starting_after")
		cursors = append(cursors, after)

		switch after {
		case "":
			_, _ = w.Write([]byte(`{"data": [
				{"id": "po_1", "amount": 150000, "currency": "usd", "status": "paid", "arrival_date": 1717286400, "created": 1717200000},
				{"id": "po_2", "currency": "usd"}
			], "has_more": true}`))
		case "po_2":
			_, _ = w.Write([]byte(`{"data": [
				{"id": "po_3", "amount": 99, "currency": "usd", "status": "in_transit"}
			], "has_more": false}`))
		default:
			t.Errorf("unexpected cursor %q", after)
		}
	}, true)

	since := time.Unix(1717200000, 0)
	payouts, err := c.FetchPayouts(context.Background(), PayoutQuery{CreatedFrom: &since})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "po_2"}, cursors)
	require.Len(t, payouts, 2)

	assert.Equal(t, "po_1", payouts[0].ID)
	assert.True(t, decimal.NewFromInt(1500).Equal(payouts[0].Amount))
	require.NotNil(t, payouts[0].ArrivalDate)
	assert.Equal(t, int64(1717286400), payouts[0].ArrivalDate.Unix())
	assert.Equal(t, "in_transit", payouts[1].Status)
	assert.True(t, decimal.RequireFromString("0.99").Equal(payouts[1].Amount))
}

func TestFetchPayouts_MissingDataArray(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object": "list"}`))
	}, true)

	_, err := c.FetchPayouts(context.Background(), PayoutQuery{})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestFetchPayouts_ServerErrorsExhaust(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, true)

	_, err := c.FetchPayouts(context.Background(), PayoutQuery{})
	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, false)

	assert.False(t, c.HasCredentials(ctx))
	assert.Error(t, c.SaveCredentials(ctx, "   "))
	require.NoError(t, c.SaveCredentials(ctx, " sk_live_abc "))
	assert.True(t, c.HasCredentials(ctx))

	v, _, _ := store.Read(ctx, keyAPIKey)
	assert.Equal(t, "sk_live_abc", v)

	store.DeleteErr = fmt.Errorf("keychain locked")
	c.ClearCredentials(ctx)
	assert.True(t, c.HasCredentials(ctx))

	store.DeleteErr = nil
	c.ClearCredentials(ctx)
	assert.False(t, c.HasCredentials(ctx))
}
