package trust

import (
	"github.com/shopspring/decimal"
)

// HintCategory groups variance explanations.
type HintCategory string

const (
	HintTiming     HintCategory = "timing"
	HintManual     HintCategory = "manual"
	HintAdjustment HintCategory = "adjustment"
	HintRecording  HintCategory = "recording"
)

// Hint is one candidate explanation of a variance. Hints are advisory.
type Hint struct {
	Category HintCategory `json:"category"`
	Message  string       `json:"message"`
}

// surplusHints apply when the accounts hold more than the ledger expects.
var surplusHints = []Hint{
	{HintTiming, "A guest payment reached the bank before its reservation was synced"},
	{HintRecording, "An owner payout or tax remittance was marked as paid before the money left the account"},
	{HintAdjustment, "Interest or a bank credit has not been recorded in the ledger"},
	{HintManual, "A manual deposit was made that is not tied to any reservation"},
}

// shortfallHints apply when the accounts hold less than the ledger expects.
var shortfallHints = []Hint{
	{HintTiming, "An owner payout or tax remittance left the account but is not yet marked as paid"},
	{HintTiming, "A processor payout is still in transit to the bank"},
	{HintAdjustment, "Bank fees, chargebacks or refunds have not been recorded in the ledger"},
	{HintRecording, "A deposit was recorded on a reservation but never reached the bank"},
	{HintManual, "A withdrawal from the trust account has not been recorded"},
}

// Diagnose returns candidate explanations for variance, or nil when it is within Tolerance.
func Diagnose(variance decimal.Decimal) []Hint {
	if variance.Abs().LessThan(Tolerance) {
		return nil
	}
	src := shortfallHints
	if variance.IsPositive() {
		src = surplusHints
	}
	return append([]Hint(nil), src...)
}
