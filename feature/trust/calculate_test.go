package trust

import (
	"testing"
	"time"

	"trust-ledger/feature/ledger"
	"trust-ledger/feature/ledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func day(n int) *time.Time {
	t := now.AddDate(0, 0, n)
	return &t
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func reservation(id string, in, out *time.Time) models.Reservation {
	return models.Reservation{
		ID:         id,
		ExternalID: "ext-" + id,
		GuestName:  "Guest " + id,
		Status:     models.StatusConfirmed,
		CheckIn:    in,
		CheckOut:   out,
	}
}

func ownedProperty(owner *models.Owner, name string, js ...models.TaxJurisdiction) *models.Property {
	p := &models.Property{ID: "p-" + name, ExternalID: "L-" + name, Name: name, TaxJurisdictions: js}
	if owner != nil {
		p.OwnerID = &owner.ID
		p.Owner = owner
	}
	return p
}

func TestCalculate_FutureDepositBalances(t *testing.T) {
	r := reservation("r1", day(7), day(10))
	r.DepositReceived = d("1000")

	res := Calculate(&ledger.State{Reservations: []models.Reservation{r}}, Input{BankBalance: d("1000"), Now: now})

	assertDec(t, "1000", res.FutureDeposits)
	assert.Equal(t, 1, res.FutureReservationCount)
	assertDec(t, "1000", res.ExpectedBalance)
	assertDec(t, "1000", res.ActualBalance)
	assertDec(t, "0", res.Variance)
	assert.True(t, res.IsBalanced)
	assert.True(t, res.IsThreeWayBalanced)
	assert.Nil(t, res.Diagnosis)
	require.Len(t, res.FutureReservations, 1)
	assert.Equal(t, "ext-r1", res.FutureReservations[0].ExternalID)
}

func TestCalculate_ShortfallIsReported(t *testing.T) {
	r := reservation("r1", day(7), day(10))
	r.DepositReceived = d("1000")

	res := Calculate(&ledger.State{Reservations: []models.Reservation{r}}, Input{BankBalance: d("500"), Now: now})

	assertDec(t, "-500", res.Variance)
	assert.False(t, res.IsBalanced)
	assert.False(t, res.IsThreeWayBalanced)
	require.NotEmpty(t, res.Diagnosis)
	assert.Equal(t, HintTiming, res.Diagnosis[0].Category)
}

func TestCalculate_HoldbackEntersBothSides(t *testing.T) {
	r := reservation("r1", day(7), day(10))
	r.DepositReceived = d("1000")

	res := Calculate(&ledger.State{Reservations: []models.Reservation{r}}, Input{
		BankBalance:    d("800"),
		StripeHoldback: d("200"),
		Now:            now,
	})
	assertDec(t, "800", res.ExpectedBalance)
	assertDec(t, "1000", res.ActualBalance)
	assertDec(t, "200", res.Variance)
	assert.False(t, res.IsBalanced)
}

func TestCalculate_EmptyStateIsBalanced(t *testing.T) {
	for name, st := range map[string]*ledger.State{"empty": {}, "nil": nil} {
		t.Run(name, func(t *testing.T) {
			res := Calculate(st, Input{Now: now})
			assert.True(t, res.ExpectedBalance.IsZero())
			assert.True(t, res.Variance.IsZero())
			assert.True(t, res.OwnerReconciliationVariance.IsZero())
			assert.True(t, res.IsBalanced)
			assert.True(t, res.IsThreeWayBalanced)
			assert.Zero(t, res.FutureReservationCount)
			assert.Empty(t, res.OwnerPayoutBreakdown)
			assert.Empty(t, res.TaxBreakdown)
			assert.Equal(t, now, res.CalculatedAt)
		})
	}
}

func TestCalculate_ToleranceBoundary(t *testing.T) {
	st := &ledger.State{Settings: models.Settings{MaintenanceReserve: d("100")}}

	assert.True(t, Calculate(st, Input{BankBalance: d("99.01"), Now: now}).IsBalanced)
	assert.True(t, Calculate(st, Input{BankBalance: d("100.99"), Now: now}).IsBalanced)
	assert.False(t, Calculate(st, Input{BankBalance: d("99"), Now: now}).IsBalanced)
	assert.False(t, Calculate(st, Input{BankBalance: d("101"), Now: now}).IsBalanced)
}

func TestCalculate_CancelledReservationsAreIgnored(t *testing.T) {
	r := reservation("r1", day(7), day(10))
	r.DepositReceived = d("1000")
	r.IsCancelled = true
	r.Status = models.StatusCancelled

	past := reservation("r2", day(-10), day(-5))
	past.OwnerPayout = d("300")
	past.TaxAmount = d("40")
	past.IsCancelled = true

	res := Calculate(&ledger.State{Reservations: []models.Reservation{r, past}}, Input{Now: now})
	assert.True(t, res.FutureDeposits.IsZero())
	assert.True(t, res.UnpaidOwnerPayouts.IsZero())
	assert.True(t, res.UnpaidTaxes.IsZero())
	assert.Empty(t, res.Excluded)
	assert.True(t, res.IsBalanced)
}

func TestCalculate_InvalidStaysAreExcluded(t *testing.T) {
	inverted := reservation("r1", day(10), day(7))
	inverted.DepositReceived = d("500")
	noCheckOut := reservation("r2", day(3), nil)
	noCheckOut.DepositReceived = d("250")
	ok := reservation("r3", day(3), day(5))
	ok.DepositReceived = d("100")

	res := Calculate(&ledger.State{Reservations: []models.Reservation{inverted, noCheckOut, ok}}, Input{BankBalance: d("100"), Now: now})

	assertDec(t, "100", res.FutureDeposits)
	assert.Equal(t, 1, res.FutureReservationCount)
	require.Len(t, res.Excluded, 2)
	assert.Equal(t, "ext-r1", res.Excluded[0].ExternalID)
	assert.Equal(t, "ext-r2", res.Excluded[1].ExternalID)
	assert.True(t, res.IsBalanced)
}

func TestCalculate_DefaultFeeFlowsIntoUnpaidPayouts(t *testing.T) {
	owner := &models.Owner{ID: "o1", Name: "Alice"}
	r := reservation("r1", day(-7), day(-3))
	r.AccommodationFare = d("1000")
	r.Property = ownedProperty(owner, "Beach")
	f := r.ApplyFinancials(decimal.Zero, r.Property, models.DefaultManagementFeePercent)
	assertDec(t, "200", f.ManagementFee)
	assertDec(t, "800", f.OwnerPayout)

	res := Calculate(&ledger.State{
		Reservations: []models.Reservation{r},
		Owners:       []models.Owner{*owner},
	}, Input{BankBalance: d("800"), Now: now})

	assertDec(t, "800", res.UnpaidOwnerPayouts)
	require.Len(t, res.OwnerPayoutBreakdown, 1)
	assertDec(t, "800", res.OwnerPayoutBreakdown[0].Total)
	assert.Equal(t, "Alice", res.OwnerPayoutBreakdown[0].OwnerName)
	assert.True(t, res.IsThreeWayBalanced)
}

// fixture builds a state touching every component.
func fixture(scale decimal.Decimal) (*ledger.State, Input) {
	owner := &models.Owner{ID: "o1", Name: "Alice"}
	prop := ownedProperty(owner, "Beach")

	future := reservation("f", day(5), day(9))
	future.DepositReceived = d("1200").Mul(scale)
	future.Property = prop

	done := reservation("c", day(-9), day(-4))
	done.OwnerPayout = d("640").Mul(scale)
	done.TaxAmount = d("85.50").Mul(scale)
	done.Property = prop

	st := &ledger.State{
		Reservations: []models.Reservation{future, done},
		Owners:       []models.Owner{*owner},
		Settings:     models.Settings{MaintenanceReserve: d("250").Mul(scale)},
	}
	return st, Input{BankBalance: d("1900").Mul(scale), StripeHoldback: d("75").Mul(scale), Now: now}
}

func TestCalculate_IsLinear(t *testing.T) {
	st1, in1 := fixture(decimal.NewFromInt(1))
	st2, in2 := fixture(decimal.NewFromInt(2))

	r1 := Calculate(st1, in1)
	r2 := Calculate(st2, in2)

	// 1200 - 75 + 640 + 85.50 + 250
	assertDec(t, "2100.50", r1.ExpectedBalance)
	assertDec(t, "4201", r2.ExpectedBalance)
	assert.True(t, r2.ExpectedBalance.Equal(r1.ExpectedBalance.Mul(decimal.NewFromInt(2))))
	assert.True(t, r2.Variance.Equal(r1.Variance.Mul(decimal.NewFromInt(2))))

	c := Components{
		FutureDeposits:      d("10"),
		StripeHoldback:      d("3"),
		UnpaidOwnerPayouts:  d("7.25"),
		UnpaidTaxes:         d("1.10"),
		MaintenanceReserves: d("4"),
	}
	double := Components{
		FutureDeposits:      c.FutureDeposits.Mul(decimal.NewFromInt(2)),
		StripeHoldback:      c.StripeHoldback.Mul(decimal.NewFromInt(2)),
		UnpaidOwnerPayouts:  c.UnpaidOwnerPayouts.Mul(decimal.NewFromInt(2)),
		UnpaidTaxes:         c.UnpaidTaxes.Mul(decimal.NewFromInt(2)),
		MaintenanceReserves: c.MaintenanceReserves.Mul(decimal.NewFromInt(2)),
	}
	assertDec(t, "19.35", c.Expected())
	assertDec(t, "38.70", double.Expected())
}

func TestUnpaidOwnerPayouts_RespectsEachOwnersWatermark(t *testing.T) {
	paidThrough := day(-5)
	alice := &models.Owner{ID: "o1", Name: "Alice", LastPayoutAt: paidThrough}
	bob := &models.Owner{ID: "o2", Name: "Bob"}

	before := reservation("a1", day(-12), day(-10))
	before.OwnerPayout = d("100")
	before.Property = ownedProperty(alice, "A")

	after := reservation("a2", day(-4), day(-2))
	after.OwnerPayout = d("250")
	after.Property = ownedProperty(alice, "A")

	bobs := reservation("b1", day(-30), day(-20))
	bobs.OwnerPayout = d("75")
	bobs.Property = ownedProperty(bob, "B")

	paid := reservation("b2", day(-9), day(-8))
	paid.OwnerPayout = d("999")
	paid.OwnerPaidOut = true
	paid.Property = ownedProperty(bob, "B")

	inProgress := reservation("b3", day(-1), day(2))
	inProgress.OwnerPayout = d("500")
	inProgress.Property = ownedProperty(bob, "B")

	rs := []models.Reservation{before, after, bobs, paid, inProgress}

	total, lines := UnpaidOwnerPayouts(rs, now)
	assertDec(t, "325", total)
	assert.Len(t, lines, 2)

	since, _ := UnpaidOwnerPayoutsSince(rs, "o1", paidThrough, now)
	assertDec(t, "250", since)
	never, _ := UnpaidOwnerPayoutsSince(rs, "o1", nil, now)
	assertDec(t, "350", never)

	groups := OwnerPayoutBreakdown(rs, []models.Owner{*bob, *alice}, now)
	require.Len(t, groups, 2)
	assert.Equal(t, "Alice", groups[0].OwnerName)
	assert.Equal(t, paidThrough, groups[0].Since)
	assertDec(t, "250", groups[0].Total)
	assert.Equal(t, "Bob", groups[1].OwnerName)
	assertDec(t, "75", groups[1].Total)
}

func TestThreeWayCheck_ReportsExactDifference(t *testing.T) {
	breakdown := []OwnerPayoutGroup{{Total: d("1000")}, {Total: d("199.37")}}

	variance, ok := ThreeWayCheck(d("1500"), breakdown, true)
	assertDec(t, "300.63", variance)
	assert.False(t, ok)

	variance, ok = ThreeWayCheck(d("1199.37"), breakdown, true)
	assert.True(t, variance.IsZero())
	assert.True(t, ok)

	_, ok = ThreeWayCheck(d("1199.37"), breakdown, false)
	assert.False(t, ok, "an unbalanced account is never three-way balanced")
}

func TestCalculate_OrphanPayoutsSurfaceAsOwnerVariance(t *testing.T) {
	owner := &models.Owner{ID: "o1", Name: "Alice"}

	owned := reservation("r1", day(-6), day(-2))
	owned.OwnerPayout = d("800")
	owned.Property = ownedProperty(owner, "Beach")

	orphan := reservation("r2", day(-6), day(-2))
	orphan.OwnerPayout = d("312.45")
	orphan.Property = ownedProperty(nil, "Unowned")

	res := Calculate(&ledger.State{
		Reservations: []models.Reservation{owned, orphan},
		Owners:       []models.Owner{*owner},
	}, Input{BankBalance: d("1112.45"), Now: now})

	assert.True(t, res.IsBalanced)
	assertDec(t, "1112.45", res.UnpaidOwnerPayouts)
	assertDec(t, "312.45", res.OwnerReconciliationVariance)
	assert.False(t, res.IsThreeWayBalanced)
}

func TestUnpaidTaxes(t *testing.T) {
	due := reservation("r1", day(-6), day(-2))
	due.TaxAmount = d("45.10")
	remitted := reservation("r2", day(-6), day(-2))
	remitted.TaxAmount = d("60")
	remitted.TaxRemitted = true
	upcoming := reservation("r3", day(2), day(4))
	upcoming.TaxAmount = d("30")
	noTax := reservation("r4", day(-6), day(-2))

	total, lines := UnpaidTaxes([]models.Reservation{due, remitted, upcoming, noTax}, now)
	assertDec(t, "45.10", total)
	require.Len(t, lines, 1)
	assert.Equal(t, "r1", lines[0].ID)
}

func TestTaxBreakdown_SplitsByRateWeight(t *testing.T) {
	city := models.TaxJurisdiction{ID: "j1", Name: "City", TaxType: models.TaxOccupancy, Rate: d("0.06"), RateUnit: models.RateUnitFraction}
	state := models.TaxJurisdiction{ID: "j2", Name: "State", TaxType: models.TaxSales, Rate: d("2"), RateUnit: models.RateUnitPercent}

	split := reservation("r1", day(-6), day(-2))
	split.TaxAmount = d("100")
	split.Property = ownedProperty(nil, "Beach", state, city)

	unassigned := reservation("r2", day(-6), day(-2))
	unassigned.TaxAmount = d("40")

	groups := TaxBreakdown([]models.Reservation{unassigned, split}, now)
	require.Len(t, groups, 3)

	assert.Equal(t, "City", groups[0].Name)
	assertDec(t, "75", groups[0].Total)
	assertDec(t, "0.06", groups[0].Rate)
	assert.Equal(t, "State", groups[1].Name)
	assertDec(t, "25", groups[1].Total)
	assertDec(t, "0.02", groups[1].Rate)
	assert.Equal(t, UnassignedJurisdiction, groups[2].Name)
	assertDec(t, "40", groups[2].Total)

	sum := decimal.Zero
	for _, g := range groups {
		sum = sum.Add(g.Total)
	}
	unpaid, _ := UnpaidTaxes([]models.Reservation{unassigned, split}, now)
	assert.True(t, sum.Equal(unpaid))
}

func TestSplitTax_RemainderGoesToLast(t *testing.T) {
	js := []models.TaxJurisdiction{{Rate: d("0.05")}, {Rate: d("0.05")}, {Rate: d("0.05")}}
	shares := splitTax(d("100"), js)
	assertDec(t, "33.33", shares[0])
	assertDec(t, "33.33", shares[1])
	assertDec(t, "33.34", shares[2])

	zero := []models.TaxJurisdiction{{Rate: decimal.Zero}, {Rate: decimal.Zero}}
	shares = splitTax(d("10.01"), zero)
	assertDec(t, "5.01", shares[0])
	assertDec(t, "5.00", shares[1])
}

func TestDiagnose(t *testing.T) {
	assert.Nil(t, Diagnose(decimal.Zero))
	assert.Nil(t, Diagnose(d("0.99")))
	assert.Nil(t, Diagnose(d("-0.99")))

	surplus := Diagnose(d("1"))
	assert.Equal(t, surplusHints, surplus)
	shortfall := Diagnose(d("-250"))
	assert.Equal(t, shortfallHints, shortfall)

	categories := map[HintCategory]bool{}
	for _, h := range append(surplus, shortfall...) {
		categories[h.Category] = true
	}
	assert.Len(t, categories, 4)

	surplus[0].Message = "changed"
	assert.NotEqual(t, "changed", surplusHints[0].Message)
}
