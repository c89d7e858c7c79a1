package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeSource names the level that supplied the management fee percent.
type FeeSource string

const (
	FeeFromReservation FeeSource = "reservation"
	FeeFromProperty    FeeSource = "property"
	FeeFromOwner       FeeSource = "owner"
	FeeFromDefault     FeeSource = "default"
)

// Financials holds the derived money fields of one reservation.
type Financials struct {
	NetRevenue    decimal.Decimal
	FeePercent    decimal.Decimal
	FeeSource     FeeSource
	ManagementFee decimal.Decimal
	OwnerPayout   decimal.Decimal
}

// ComputeTotal returns the subtotal when positive, otherwise fare + cleaning + taxes.
func ComputeTotal(subtotal, fare, cleaning, taxes decimal.Decimal) decimal.Decimal {
	if subtotal.IsPositive() {
		return subtotal
	}
	return fare.Add(cleaning).Add(taxes)
}

// NetRevenue is total minus taxes and the host service fee, floored at zero.
func NetRevenue(total, taxes, hostServiceFee decimal.Decimal) decimal.Decimal {
	net := total.Sub(taxes).Sub(hostServiceFee)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// ResolveFeePercent walks reservation -> property -> owner -> fallback.
// A reservation-level fee is an amount and is back-derived as a percent of net.
func ResolveFeePercent(manualFee decimal.NullDecimal, net decimal.Decimal, property *Property, owner *Owner, fallback decimal.Decimal) (decimal.Decimal, FeeSource) {
	if manualFee.Valid && net.IsPositive() {
		return manualFee.Decimal.Div(net).Mul(hundred), FeeFromReservation
	}
	if property != nil && property.ManagementFeePercent.Valid {
		return property.ManagementFeePercent.Decimal, FeeFromProperty
	}
	if owner != nil && owner.ManagementFeePercent.Valid {
		return owner.ManagementFeePercent.Decimal, FeeFromOwner
	}
	return fallback, FeeFromDefault
}

// ComputeFinancials derives the management fee and owner payout.
// The fee is rounded to cents and the payout takes the remainder, so fee + payout == net.
func ComputeFinancials(total, taxes, hostServiceFee decimal.Decimal, manualFee decimal.NullDecimal, property *Property, owner *Owner, fallback decimal.Decimal) Financials {
	net := NetRevenue(total, taxes, hostServiceFee)
	percent, source := ResolveFeePercent(manualFee, net, property, owner, fallback)

	fee := net.Mul(percent).Div(hundred).Round(2)
	if source == FeeFromReservation {
		fee = manualFee.Decimal.Round(2)
	}
	if fee.GreaterThan(net) {
		fee = net
	}

	return Financials{
		NetRevenue:    net,
		FeePercent:    percent,
		FeeSource:     source,
		ManagementFee: fee,
		OwnerPayout:   net.Sub(fee),
	}
}

// ApplyFinancials recomputes the total and derived payout fields in place.
func (r *Reservation) ApplyFinancials(subtotal decimal.Decimal, property *Property, fallback decimal.Decimal) Financials {
	r.TotalAmount = ComputeTotal(subtotal, r.AccommodationFare, r.CleaningFee, r.TaxAmount)

	var owner *Owner
	if property != nil {
		owner = property.Owner
	}
	f := ComputeFinancials(r.TotalAmount, r.TaxAmount, r.HostServiceFee, r.ManualManagementFee, property, owner, fallback)
	r.ManagementFee = f.ManagementFee
	r.OwnerPayout = f.OwnerPayout
	r.IsFullyPaid = !r.BalanceDue.IsPositive()
	return f
}

// ApplyStatus sets the normalized status and cancellation flag.
// The cancellation timestamp is stamped on the first transition and never overwritten.
func (r *Reservation) ApplyStatus(external string, now time.Time) {
	r.ExternalStatus = external
	r.Status = NormalizeStatus(external)
	r.IsCancelled = r.Status == StatusCancelled
	if r.IsCancelled && r.CancelledAt == nil {
		stamp := now
		r.CancelledAt = &stamp
	}
}
