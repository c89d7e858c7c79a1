package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"trust-ledger/core/fields"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PayoutQuery narrows a payout fetch.
type PayoutQuery struct {
	CreatedFrom *time.Time
}

// Payout is a transfer from the processor to the bank account.
type Payout struct {
	ID          string
	Amount      decimal.Decimal
	Currency    string
	Status      string
	ArrivalDate *time.Time
	CreatedAt   *time.Time
}

// FetchPayouts returns every payout matching q, newest first, following the cursor.
func (c *Client) FetchPayouts(ctx context.Context, q PayoutQuery) ([]Payout, error) {
	var out []Payout
	skipped := 0
	after := ""

	for {
		query := url.Values{}
		query.Set("limit", fmt.Sprint(PageSize))
		if q.CreatedFrom != nil {
			query.Set("created[gte]", fmt.Sprint(q.CreatedFrom.Unix()))
		}
		if after != "" {
			query.Set("starting_after", after)
		}

		page, err := c.getJSON(ctx, "/payouts", query)
		if err != nil {
			return nil, err
		}

		items, ok := page.Records("data")
		if !ok {
			return nil, fmt.Errorf("%w: /payouts: no data array", ErrDecode)
		}

		skipped += page.Len("data") - len(items)

		for _, item := range items {
			p, ok := DecodePayout(item)
			if !ok {
				skipped++
				continue
			}
			out = append(out, p)
		}

		more, _ := page.Bool("has_more")
		if !more || len(items) == 0 {
			break
		}
		// The cursor is the last object id on the page, decodable or not.
		last := items[len(items)-1].String("id")
		if last == "" || last == after {
			break
		}
		after = last
	}

	if skipped > 0 {
		c.logger.Warn("Skipped undecodable records", zap.String("path", "/payouts"), zap.Int("skipped", skipped))
	}
	return out, nil
}

// DecodePayout maps one payout payload. Only the id and amount are required.
func DecodePayout(rec fields.Record) (Payout, bool) {
	id := rec.String("id")
	minor, ok := rec.Int64("amount")
	if id == "" || !ok {
		return Payout{}, false
	}
	currency := strings.ToLower(rec.String("currency"))
	return Payout{
		ID:          id,
		Amount:      ToDecimal(minor, currency),
		Currency:    currency,
		Status:      rec.String("status"),
		ArrivalDate: rec.Time("arrival_date"),
		CreatedAt:   rec.Time("created"),
	}, true
}
