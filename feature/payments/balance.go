package payments

import (
	"context"
	"strings"

	"trust-ledger/core/fields"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists currencies whose minor unit is the major unit.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// Amount is an integer amount in minor units of one currency.
type Amount struct {
	Currency string
	Minor    int64
}

// Decimal converts the amount to major units.
func (a Amount) Decimal() decimal.Decimal {
	return ToDecimal(a.Minor, a.Currency)
}

// ToDecimal converts minor units to major units for currency.
func ToDecimal(minor int64, currency string) decimal.Decimal {
	if zeroDecimal[strings.ToLower(currency)] {
		return decimal.NewFromInt(minor)
	}
	return decimal.New(minor, -2)
}

// Balance is the account balance split by currency.
type Balance struct {
	Available        []Amount
	Pending          []Amount
	Reserved         []Amount
	InstantAvailable []Amount
}

func sumFor(amounts []Amount, currency string) int64 {
	var total int64
	for _, a := range amounts {
		if strings.EqualFold(a.Currency, currency) {
			total += a.Minor
		}
	}
	return total
}

// EffectiveAvailable returns the available amount for currency. The platform sometimes
// reports zero available while the funds show up as instantly available; in that case the
// instant amount is used instead.
func (b Balance) EffectiveAvailable(currency string) decimal.Decimal {
	minor := sumFor(b.Available, currency)
	if minor == 0 {
		minor = sumFor(b.InstantAvailable, currency)
	}
	return ToDecimal(minor, currency)
}

// Holdback returns the funds the processor still retains in currency: pending plus reserved.
func (b Balance) Holdback(currency string) decimal.Decimal {
	return ToDecimal(sumFor(b.Pending, currency)+sumFor(b.Reserved, currency), currency)
}

// FetchBalance returns the current account balance.
func (c *Client) FetchBalance(ctx context.Context) (Balance, error) {
	rec, err := c.getJSON(ctx, "/balance", nil)
	if err != nil {
		return Balance{}, err
	}
	return DecodeBalance(rec), nil
}

// DecodeBalance maps a balance payload. Missing buckets are empty.
func DecodeBalance(rec fields.Record) Balance {
	return Balance{
		Available:        decodeAmounts(rec, "available"),
		Pending:          decodeAmounts(rec, "pending"),
		Reserved:         decodeAmounts(rec, "connect_reserved", "reserved", "pending_reserved"),
		InstantAvailable: decodeAmounts(rec, "instant_available", "instantAvailable"),
	}
}

func decodeAmounts(rec fields.Record, paths ...string) []Amount {
	items, _ := rec.Records(paths...)
	var out []Amount
	for _, item := range items {
		minor, ok := item.Int64("amount")
		if !ok {
			continue
		}
		out = append(out, Amount{Currency: strings.ToLower(item.String("currency")), Minor: minor})
	}
	return out
}
