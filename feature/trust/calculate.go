package trust

import (
	"sort"
	"time"

	"trust-ledger/feature/ledger"
	"trust-ledger/feature/ledger/models"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest absolute variance still reported as balanced (exclusive).
var Tolerance = decimal.NewFromInt(1)

// UnassignedJurisdiction names the tax group for properties without jurisdictions.
const UnassignedJurisdiction = "Unassigned"

// Components are the terms of the expected balance.
type Components struct {
	FutureDeposits      decimal.Decimal `json:"future_deposits"`
	StripeHoldback      decimal.Decimal `json:"stripe_holdback"`
	UnpaidOwnerPayouts  decimal.Decimal `json:"unpaid_owner_payouts"`
	UnpaidTaxes         decimal.Decimal `json:"unpaid_taxes"`
	MaintenanceReserves decimal.Decimal `json:"maintenance_reserves"`
}

// Expected returns futureDeposits - holdback + unpaidOwnerPayouts + unpaidTaxes + maintenanceReserves.
func (c Components) Expected() decimal.Decimal {
	return c.FutureDeposits.
		Sub(c.StripeHoldback).
		Add(c.UnpaidOwnerPayouts).
		Add(c.UnpaidTaxes).
		Add(c.MaintenanceReserves)
}

// ReservationSummary is one drill-down line.
type ReservationSummary struct {
	ID           string          `json:"id"`
	ExternalID   string          `json:"external_id"`
	GuestName    string          `json:"guest_name,omitempty"`
	PropertyName string          `json:"property_name,omitempty"`
	CheckIn      *time.Time      `json:"check_in,omitempty"`
	CheckOut     *time.Time      `json:"check_out,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
}

func summarize(r models.Reservation, amount decimal.Decimal) ReservationSummary {
	s := ReservationSummary{
		ID:         r.ID,
		ExternalID: r.ExternalID,
		GuestName:  r.GuestName,
		CheckIn:    r.CheckIn,
		CheckOut:   r.CheckOut,
		Amount:     amount,
	}
	if r.Property != nil {
		s.PropertyName = r.Property.Name
	}
	return s
}

// OwnerPayoutGroup is the unpaid payouts of one owner.
type OwnerPayoutGroup struct {
	OwnerID      string               `json:"owner_id"`
	OwnerName    string               `json:"owner_name"`
	Since        *time.Time           `json:"since,omitempty"`
	Total        decimal.Decimal      `json:"total"`
	Reservations []ReservationSummary `json:"reservations"`
}

// TaxGroup is the unremitted tax attributed to one jurisdiction.
type TaxGroup struct {
	JurisdictionID string               `json:"jurisdiction_id,omitempty"`
	Name           string               `json:"name"`
	TaxType        models.TaxType       `json:"tax_type,omitempty"`
	Rate           decimal.Decimal      `json:"rate"`
	Total          decimal.Decimal      `json:"total"`
	Reservations   []ReservationSummary `json:"reservations"`
}

func isCompleted(r models.Reservation, now time.Time) bool {
	return r.CheckOut != nil && r.CheckOut.Before(now)
}

// active reports whether r takes part in the calculation at all.
func active(r models.Reservation) bool {
	return !r.IsCancelled && r.HasValidStay()
}

// Partition splits reservations into those the calculation uses and the active ones
// excluded for unusable stay dates. Cancelled reservations are dropped from both.
func Partition(rs []models.Reservation) (usable []models.Reservation, excluded []ReservationSummary) {
	for _, r := range rs {
		switch {
		case r.IsCancelled:
		case !r.HasValidStay():
			excluded = append(excluded, summarize(r, r.TotalAmount))
		default:
			usable = append(usable, r)
		}
	}
	return usable, excluded
}

// FutureDeposits sums deposits held for stays that have not started.
func FutureDeposits(rs []models.Reservation, now time.Time) (decimal.Decimal, []ReservationSummary) {
	total := decimal.Zero
	var lines []ReservationSummary
	for _, r := range rs {
		if !active(r) || !r.CheckIn.After(now) || !r.DepositReceived.IsPositive() {
			continue
		}
		total = total.Add(r.DepositReceived)
		lines = append(lines, summarize(r, r.DepositReceived))
	}
	return total, lines
}

// owesPayout reports whether r is a completed, unpaid stay checked out after since.
func owesPayout(r models.Reservation, since *time.Time, now time.Time) bool {
	if !active(r) || r.OwnerPaidOut || !isCompleted(r, now) {
		return false
	}
	return since == nil || r.CheckOut.After(*since)
}

// UnpaidOwnerPayoutsSince sums the unpaid payouts of ownerID's reservations checked out after since.
// A nil since means the owner has never been paid.
func UnpaidOwnerPayoutsSince(rs []models.Reservation, ownerID string, since *time.Time, now time.Time) (decimal.Decimal, []ReservationSummary) {
	total := decimal.Zero
	var lines []ReservationSummary
	for _, r := range rs {
		owner := r.ResolvedOwner()
		if owner == nil || owner.ID != ownerID || !owesPayout(r, since, now) {
			continue
		}
		total = total.Add(r.OwnerPayout)
		lines = append(lines, summarize(r, r.OwnerPayout))
	}
	return total, lines
}

// UnpaidOwnerPayouts sums unpaid payouts across the ledger. Each reservation is measured
// against its own owner's watermark; reservations without an owner have none.
func UnpaidOwnerPayouts(rs []models.Reservation, now time.Time) (decimal.Decimal, []ReservationSummary) {
	total := decimal.Zero
	var lines []ReservationSummary
	for _, r := range rs {
		var since *time.Time
		if owner := r.ResolvedOwner(); owner != nil {
			since = owner.LastPayoutAt
		}
		if !owesPayout(r, since, now) {
			continue
		}
		total = total.Add(r.OwnerPayout)
		lines = append(lines, summarize(r, r.OwnerPayout))
	}
	return total, lines
}

// OwnerPayoutBreakdown groups unpaid payouts by owner, using each owner's own watermark.
// Owners with nothing due are omitted.
func OwnerPayoutBreakdown(rs []models.Reservation, owners []models.Owner, now time.Time) []OwnerPayoutGroup {
	var groups []OwnerPayoutGroup
	for _, o := range owners {
		total, lines := UnpaidOwnerPayoutsSince(rs, o.ID, o.LastPayoutAt, now)
		if len(lines) == 0 {
			continue
		}
		groups = append(groups, OwnerPayoutGroup{
			OwnerID:      o.ID,
			OwnerName:    o.Name,
			Since:        o.LastPayoutAt,
			Total:        total,
			Reservations: lines,
		})
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].OwnerName < groups[j].OwnerName })
	return groups
}

func owesTax(r models.Reservation, now time.Time) bool {
	return active(r) && isCompleted(r, now) && !r.TaxRemitted && r.TaxAmount.IsPositive()
}

// UnpaidTaxes sums tax collected on completed stays and not yet remitted.
func UnpaidTaxes(rs []models.Reservation, now time.Time) (decimal.Decimal, []ReservationSummary) {
	total := decimal.Zero
	var lines []ReservationSummary
	for _, r := range rs {
		if !owesTax(r, now) {
			continue
		}
		total = total.Add(r.TaxAmount)
		lines = append(lines, summarize(r, r.TaxAmount))
	}
	return total, lines
}

// splitTax divides amount across jurisdictions by rate weight. Shares are rounded to
// cents and the last jurisdiction takes the remainder, so shares always sum to amount.
func splitTax(amount decimal.Decimal, js []models.TaxJurisdiction) []decimal.Decimal {
	weights := make([]decimal.Decimal, len(js))
	sum := decimal.Zero
	for i, j := range js {
		w := j.Fraction()
		if w.IsNegative() {
			w = decimal.Zero
		}
		weights[i] = w
		sum = sum.Add(w)
	}
	if sum.IsZero() {
		for i := range weights {
			weights[i] = decimal.NewFromInt(1)
		}
		sum = decimal.NewFromInt(int64(len(js)))
	}

	shares := make([]decimal.Decimal, len(js))
	allocated := decimal.Zero
	for i := range js[:len(js)-1] {
		shares[i] = amount.Mul(weights[i]).Div(sum).Round(2)
		allocated = allocated.Add(shares[i])
	}
	shares[len(js)-1] = amount.Sub(allocated)
	return shares
}

// TaxBreakdown groups unremitted tax by jurisdiction. Groups are ordered by name with
// the unassigned group last.
func TaxBreakdown(rs []models.Reservation, now time.Time) []TaxGroup {
	index := map[string]int{}
	var groups []TaxGroup

	add := func(key string, g TaxGroup, line ReservationSummary) {
		i, ok := index[key]
		if !ok {
			g.Total = decimal.Zero
			groups = append(groups, g)
			i = len(groups) - 1
			index[key] = i
		}
		groups[i].Total = groups[i].Total.Add(line.Amount)
		groups[i].Reservations = append(groups[i].Reservations, line)
	}

	for _, r := range rs {
		if !owesTax(r, now) {
			continue
		}
		var js []models.TaxJurisdiction
		if r.Property != nil {
			js = r.Property.TaxJurisdictions
		}
		if len(js) == 0 {
			add("", TaxGroup{Name: UnassignedJurisdiction}, summarize(r, r.TaxAmount))
			continue
		}
		for i, share := range splitTax(r.TaxAmount, js) {
			j := js[i]
			add(j.ID, TaxGroup{
				JurisdictionID: j.ID,
				Name:           j.Name,
				TaxType:        j.TaxType,
				Rate:           j.Fraction(),
			}, summarize(r, share))
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if (a.JurisdictionID == "") != (b.JurisdictionID == "") {
			return b.JurisdictionID == ""
		}
		return a.Name < b.Name
	})
	return groups
}

// ThreeWayCheck compares the aggregate unpaid payouts with the sum of the owner breakdown.
// It returns the difference and whether the ledger is balanced on all three legs.
func ThreeWayCheck(unpaidOwnerPayouts decimal.Decimal, breakdown []OwnerPayoutGroup, isBalanced bool) (decimal.Decimal, bool) {
	sum := decimal.Zero
	for _, g := range breakdown {
		sum = sum.Add(g.Total)
	}
	variance := unpaidOwnerPayouts.Sub(sum)
	return variance, isBalanced && variance.Abs().LessThan(Tolerance)
}

// Input holds the externally supplied figures of one calculation.
type Input struct {
	BankBalance    decimal.Decimal
	StripeHoldback decimal.Decimal
	Now            time.Time
}

// Result is the full breakdown of one calculation.
type Result struct {
	Components
	BankBalance                  decimal.Decimal      `json:"bank_balance"`
	ExpectedBalance              decimal.Decimal      `json:"expected_balance"`
	ActualBalance                decimal.Decimal      `json:"actual_balance"`
	Variance                     decimal.Decimal      `json:"variance"`
	OwnerReconciliationVariance  decimal.Decimal      `json:"owner_reconciliation_variance"`
	IsBalanced                   bool                 `json:"is_balanced"`
	IsThreeWayBalanced           bool                 `json:"is_three_way_balanced"`
	FutureReservationCount       int                  `json:"future_reservation_count"`
	UnpaidPayoutReservationCount int                  `json:"unpaid_payout_reservation_count"`
	UnpaidTaxReservationCount    int                  `json:"unpaid_tax_reservation_count"`
	FutureReservations           []ReservationSummary `json:"future_reservations"`
	UnpaidPayoutReservations     []ReservationSummary `json:"unpaid_payout_reservations"`
	UnpaidTaxReservations        []ReservationSummary `json:"unpaid_tax_reservations"`
	OwnerPayoutBreakdown         []OwnerPayoutGroup   `json:"owner_payout_breakdown"`
	TaxBreakdown                 []TaxGroup           `json:"tax_breakdown"`
	Excluded                     []ReservationSummary `json:"excluded"`
	Diagnosis                    []Hint               `json:"diagnosis,omitempty"`
	CalculatedAt                 time.Time            `json:"calculated_at"`
}

// Calculate derives the expected balance and the reconciliation checks from st.
// It never fails: an empty state yields zero components and a balanced result.
func Calculate(st *ledger.State, in Input) *Result {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		rs      []models.Reservation
		owners  []models.Owner
		reserve = decimal.Zero
	)
	if st != nil {
		rs, owners = st.Reservations, st.Owners
		reserve = st.MaintenanceReserve()
	}
	usable, excluded := Partition(rs)

	res := &Result{BankBalance: in.BankBalance, Excluded: excluded, CalculatedAt: now}
	res.StripeHoldback = in.StripeHoldback
	res.MaintenanceReserves = reserve
	res.FutureDeposits, res.FutureReservations = FutureDeposits(usable, now)
	res.UnpaidOwnerPayouts, res.UnpaidPayoutReservations = UnpaidOwnerPayouts(usable, now)
	res.UnpaidTaxes, res.UnpaidTaxReservations = UnpaidTaxes(usable, now)
	res.OwnerPayoutBreakdown = OwnerPayoutBreakdown(usable, owners, now)
	res.TaxBreakdown = TaxBreakdown(usable, now)

	res.FutureReservationCount = len(res.FutureReservations)
	res.UnpaidPayoutReservationCount = len(res.UnpaidPayoutReservations)
	res.UnpaidTaxReservationCount = len(res.UnpaidTaxReservations)

	res.ExpectedBalance = res.Components.Expected()
	res.ActualBalance = in.BankBalance.Add(in.StripeHoldback)
	res.Variance = res.ActualBalance.Sub(res.ExpectedBalance)
	res.IsBalanced = res.Variance.Abs().LessThan(Tolerance)
	res.OwnerReconciliationVariance, res.IsThreeWayBalanced = ThreeWayCheck(res.UnpaidOwnerPayouts, res.OwnerPayoutBreakdown, res.IsBalanced)
	res.Diagnosis = Diagnose(res.Variance)
	return res
}
