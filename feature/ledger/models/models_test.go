package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func percent(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func TestComputeTotal(t *testing.T) {
	assert.True(t, d("900").Equal(ComputeTotal(d("900"), d("700"), d("100"), d("50"))))
	assert.True(t, d("850").Equal(ComputeTotal(decimal.Zero, d("700"), d("100"), d("50"))))
	assert.True(t, d("850").Equal(ComputeTotal(d("-1"), d("700"), d("100"), d("50"))))
}

func TestComputeFinancials_DefaultPercent(t *testing.T) {
	owner := &Owner{ManagementFeePercent: percent("20")}
	f := ComputeFinancials(d("1000"), decimal.Zero, decimal.Zero, decimal.NullDecimal{}, nil, owner, DefaultManagementFeePercent)

	assert.True(t, d("200").Equal(f.ManagementFee))
	assert.True(t, d("800").Equal(f.OwnerPayout))
	assert.Equal(t, FeeFromOwner, f.FeeSource)
}

func TestResolveFeePercent_Priority(t *testing.T) {
	net := d("1000")
	property := &Property{ManagementFeePercent: percent("15")}
	owner := &Owner{ManagementFeePercent: percent("25")}

	tests := []struct {
		name     string
		manual   decimal.NullDecimal
		property *Property
		owner    *Owner
		want     string
		source   FeeSource
	}{
		{"Reservation", percent("100"), property, owner, "10", FeeFromReservation},
		{"Property", decimal.NullDecimal{}, property, owner, "15", FeeFromProperty},
		{"Owner", decimal.NullDecimal{}, &Property{}, owner, "25", FeeFromOwner},
		{"Default", decimal.NullDecimal{}, nil, nil, "20", FeeFromDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source := ResolveFeePercent(tt.manual, net, tt.property, tt.owner, DefaultManagementFeePercent)
			assert.True(t, d(tt.want).Equal(got), "got %s", got)
			assert.Equal(t, tt.source, source)
		})
	}
}

func TestComputeFinancials_DeductsTaxAndHostFee(t *testing.T) {
	f := ComputeFinancials(d("1200"), d("120"), d("30"), decimal.NullDecimal{}, nil, nil, DefaultManagementFeePercent)

	assert.True(t, d("1050").Equal(f.NetRevenue))
	assert.True(t, d("210").Equal(f.ManagementFee))
	assert.True(t, d("840").Equal(f.OwnerPayout))
}

func TestComputeFinancials_RoundsFeeToCents(t *testing.T) {
	f := ComputeFinancials(d("333.33"), decimal.Zero, decimal.Zero, decimal.NullDecimal{}, nil, nil, DefaultManagementFeePercent)

	assert.True(t, d("66.67").Equal(f.ManagementFee), "got %s", f.ManagementFee)
	assert.True(t, d("266.66").Equal(f.OwnerPayout), "got %s", f.OwnerPayout)
	assert.True(t, f.NetRevenue.Equal(f.ManagementFee.Add(f.OwnerPayout)))
}

func TestComputeFinancials_NegativeNetFloorsAtZero(t *testing.T) {
	f := ComputeFinancials(d("100"), d("150"), decimal.Zero, decimal.NullDecimal{}, nil, nil, DefaultManagementFeePercent)

	assert.True(t, f.NetRevenue.IsZero())
	assert.True(t, f.ManagementFee.IsZero())
	assert.True(t, f.OwnerPayout.IsZero())
}

func TestApplyStatus_StampsCancellationOnce(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)

	r := &Reservation{}
	r.ApplyStatus("confirmed", first)
	assert.False(t, r.IsCancelled)
	assert.Nil(t, r.CancelledAt)

	r.ApplyStatus("canceled", first)
	assert.True(t, r.IsCancelled)
	assert.Equal(t, StatusCancelled, r.Status)
	assert.Equal(t, first, *r.CancelledAt)

	r.ApplyStatus("cancelled", later)
	assert.Equal(t, first, *r.CancelledAt)
}

func TestApplyFinancials(t *testing.T) {
	owner := &Owner{ManagementFeePercent: percent("30")}
	property := &Property{Owner: owner}
	r := &Reservation{
		AccommodationFare: d("800"),
		CleaningFee:       d("100"),
		TaxAmount:         d("100"),
		BalanceDue:        decimal.Zero,
	}

	f := r.ApplyFinancials(decimal.Zero, property, DefaultManagementFeePercent)

	assert.True(t, d("1000").Equal(r.TotalAmount))
	assert.Equal(t, FeeFromOwner, f.FeeSource)
	assert.True(t, d("270").Equal(r.ManagementFee))
	assert.True(t, d("630").Equal(r.OwnerPayout))
	assert.True(t, r.IsFullyPaid)

	r.BalanceDue = d("10")
	r.ApplyFinancials(decimal.Zero, property, DefaultManagementFeePercent)
	assert.False(t, r.IsFullyPaid)
}

func TestHasValidStay(t *testing.T) {
	in := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := in.Add(72 * time.Hour)

	assert.True(t, Reservation{CheckIn: &in, CheckOut: &out}.HasValidStay())
	assert.False(t, Reservation{CheckIn: &out, CheckOut: &in}.HasValidStay())
	assert.False(t, Reservation{CheckIn: &in, CheckOut: &in}.HasValidStay())
	assert.False(t, Reservation{CheckIn: &in}.HasValidStay())
	assert.True(t, Reservation{IsCancelled: true}.HasValidStay())
}

func TestTaxJurisdiction_Fraction(t *testing.T) {
	assert.True(t, d("0.065").Equal(TaxJurisdiction{Rate: d("0.065"), RateUnit: RateUnitFraction}.Fraction()))
	assert.True(t, d("0.065").Equal(TaxJurisdiction{Rate: d("6.5"), RateUnit: RateUnitPercent}.Fraction()))
	// Sub-1% rates stay exact because the unit is explicit.
	assert.True(t, d("0.005").Equal(TaxJurisdiction{Rate: d("0.5"), RateUnit: RateUnitPercent}.Fraction()))
	assert.True(t, d("0.005").Equal(RateFromPercent(d("0.5"))))
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, StatusConfirmed, NormalizeStatus("reserved"))
	assert.Equal(t, StatusCheckedIn, NormalizeStatus("checked_in"))
	assert.Equal(t, StatusCheckedOut, NormalizeStatus("Checked_Out"))
	assert.Equal(t, StatusCancelled, NormalizeStatus("canceled"))
	assert.Equal(t, StatusInquiry, NormalizeStatus("inquiry"))
	assert.True(t, IsCancellationStatus(" CANCELLED "))
	assert.False(t, IsCancellationStatus("declined"))
}

func TestReservation_Validate(t *testing.T) {
	in := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := in.Add(72 * time.Hour)

	valid := Reservation{ExternalID: "r1", CheckIn: &in, CheckOut: &out, BalanceDue: d("-5")}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.ExternalID = ""
	var verr *ValidationError
	assert.ErrorAs(t, missing.Validate(), &verr)
	assert.Equal(t, "external_id", verr.Field)

	negative := valid
	negative.DepositReceived = d("-1")
	assert.ErrorAs(t, negative.Validate(), &verr)
	assert.Equal(t, "deposit_received", verr.Field)

	inverted := valid
	inverted.CheckIn, inverted.CheckOut = &out, &in
	assert.ErrorAs(t, inverted.Validate(), &verr)
	assert.Equal(t, "check_out", verr.Field)
}
