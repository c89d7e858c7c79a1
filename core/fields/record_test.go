package fields

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_FirstMatchingKeyAndType(t *testing.T) {
	rec, err := Decode([]byte(`{
		"_id": "abc",
		"money": {"subTotalPrice": "not-a-number", "subtotal": 1250.75, "totalPaid": "300"},
		"nights": 3,
		"listing": {"id": 42},
		"active": "yes",
		"title": "",
		"nickname": "Beach House"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "abc", rec.String("id", "_id"))
	assert.True(t, decimal.RequireFromString("1250.75").Equal(rec.Decimal("money.subTotalPrice", "money.subtotal")))
	assert.True(t, decimal.NewFromInt(300).Equal(rec.Decimal("money.totalPaid")))
	assert.Equal(t, "42", rec.String("listingId", "listing.id"))
	assert.Equal(t, "Beach House", rec.String("title", "nickname"))

	nights, ok := rec.Int64("nights")
	assert.True(t, ok)
	assert.Equal(t, int64(3), nights)

	active, ok := rec.Bool("active")
	assert.True(t, ok)
	assert.True(t, active)
}

func TestRecord_MissingFieldsResolveToDefaults(t *testing.T) {
	rec, err := Decode([]byte(`{"money": null, "checkIn": "garbage"}`))
	require.NoError(t, err)

	assert.Equal(t, "", rec.String("missing"))
	assert.True(t, rec.Decimal("money.totalPaid").IsZero())
	assert.False(t, rec.NullDecimal("money.totalPaid").Valid)
	assert.Nil(t, rec.Time("checkIn"))

	_, ok := rec.Object("money")
	assert.False(t, ok)
}

func TestRecord_Records(t *testing.T) {
	rec, err := Decode([]byte(`{"data": [{"id": 1}, "junk", {"id": 2}]}`))
	require.NoError(t, err)

	items, ok := rec.Records("results", "data")
	require.True(t, ok)
	assert.Len(t, items, 2)
	assert.Equal(t, 3, rec.Len("results", "data"), "non-object elements still count")
	assert.Zero(t, rec.Len("results"))
}

func TestDecode_RejectsNonObjects(t *testing.T) {
	_, err := Decode([]byte(`[1,2,3]`))
	assert.Error(t, err)

	_, err = Decode([]byte(`null`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{broken`))
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  time.Time
		ok    bool
	}{
		{"RFC3339", "2024-05-01T15:00:00Z", time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC), true},
		{"RFC3339Offset", "2024-05-01T10:00:00-05:00", time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC), true},
		{"Millis", "2024-05-01T15:00:00.123Z", time.Date(2024, 5, 1, 15, 0, 0, 123000000, time.UTC), true},
		{"NoZone", "2024-05-01T15:00:00", time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC), true},
		{"DateOnly", "2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"USDate", "05/01/2024", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"UnixSeconds", float64(1714575600), time.Unix(1714575600, 0).UTC(), true},
		{"UnixMillis", float64(1714575600000), time.UnixMilli(1714575600000).UTC(), true},
		{"Empty", "", time.Time{}, false},
		{"Garbage", "next tuesday", time.Time{}, false},
		{"Bool", true, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestToBool(t *testing.T) {
	tests := []struct {
		input any
		want  bool
		ok    bool
	}{
		{true, true, true},
		{"1", true, true},
		{"TRUE", true, true},
		{"no", false, true},
		{float64(0), false, true},
		{float64(2), false, false},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		got, ok := ToBool(tt.input)
		assert.Equal(t, tt.ok, ok, "%v", tt.input)
		assert.Equal(t, tt.want, got, "%v", tt.input)
	}
}
