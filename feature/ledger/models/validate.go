package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError describes the first invalid field of an entity.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s.%s: %s", e.Entity, e.Field, e.Reason)
}

// Validate checks the invariants the store enforces before writing a reservation.
// BalanceDue may be negative (guest credit); the other money fields may not.
func (r Reservation) Validate() error {
	if r.ExternalID == "" {
		return &ValidationError{Entity: "reservation", Field: "external_id", Reason: "required"}
	}
	if !r.HasValidStay() {
		return &ValidationError{Entity: "reservation", Field: "check_out", Reason: "must be after check_in"}
	}

	money := []struct {
		field string
		value decimal.Decimal
	}{
		{"total_amount", r.TotalAmount},
		{"accommodation_fare", r.AccommodationFare},
		{"cleaning_fee", r.CleaningFee},
		{"tax_amount", r.TaxAmount},
		{"host_service_fee", r.HostServiceFee},
		{"guest_service_fee", r.GuestServiceFee},
		{"deposit_received", r.DepositReceived},
		{"management_fee", r.ManagementFee},
		{"owner_payout", r.OwnerPayout},
	}
	for _, m := range money {
		if m.value.IsNegative() {
			return &ValidationError{Entity: "reservation", Field: m.field, Reason: "must not be negative"}
		}
	}
	return nil
}

// Validate checks the invariants the store enforces before writing a property.
func (p Property) Validate() error {
	if p.ExternalID == "" {
		return &ValidationError{Entity: "property", Field: "external_id", Reason: "required"}
	}
	if p.ManagementFeePercent.Valid && (p.ManagementFeePercent.Decimal.IsNegative() || p.ManagementFeePercent.Decimal.GreaterThan(hundred)) {
		return &ValidationError{Entity: "property", Field: "management_fee_percent", Reason: "must be between 0 and 100"}
	}
	return nil
}
