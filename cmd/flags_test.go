package cmd

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"trust-ledger/core/retry"
	"trust-ledger/core/runguard"
	"trust-ledger/feature/ledger/models"
	"trust-ledger/feature/payments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateFlag(t *testing.T) {
	got, err := parseDateFlag("since", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseDateFlag("since", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseDateFlag("since", "2024-06-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), *got)

	_, err = parseDateFlag("since", "June 1st")
	assert.ErrorContains(t, err, "--since")
}

func TestParseMoneyFlag(t *testing.T) {
	got, err := parseMoneyFlag("holdback", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseMoneyFlag("holdback", "1250.75")
	require.NoError(t, err)
	assert.Equal(t, "1250.75", got.String())

	_, err = parseMoneyFlag("holdback", "12,50")
	assert.ErrorContains(t, err, "--holdback")
}

func TestThroughFlag(t *testing.T) {
	got, err := throughFlag("2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC), got)

	got, err = throughFlag("2024-06-30T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC), got)

	before := time.Now().UTC()
	got, err = throughFlag("")
	require.NoError(t, err)
	assert.False(t, got.Before(before))
}

func TestParseTaxType(t *testing.T) {
	got, err := parseTaxType(" Tourism ")
	require.NoError(t, err)
	assert.Equal(t, models.TaxTourism, got)

	_, err = parseTaxType("vat")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"busy", fmt.Errorf("sync: %w", runguard.ErrBusy), exitTempFail},
		{"credentials", fmt.Errorf("balance: %w", payments.ErrMissingCredentials), exitConfig},
		{"exhausted", &retry.ExhaustedError{Attempts: 3, Last: errors.New("503")}, exitUnavailable},
		{"other", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestManualFeeArg(t *testing.T) {
	fee, err := manualFeeArg([]string{"150.005"}, false)
	require.NoError(t, err)
	assert.True(t, fee.Valid)
	assert.Equal(t, "150.01", fee.Decimal.StringFixed(2))

	fee, err = manualFeeArg(nil, true)
	require.NoError(t, err)
	assert.False(t, fee.Valid)

	_, err = manualFeeArg([]string{"10"}, true)
	assert.Error(t, err)
	_, err = manualFeeArg(nil, false)
	assert.Error(t, err)
	_, err = manualFeeArg([]string{"-5"}, false)
	assert.Error(t, err)
}
