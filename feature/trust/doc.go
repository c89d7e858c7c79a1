// Package trust reconciles the trust account against the ledger.
//
// The expected balance is derived from local data only:
//
//	expected = futureDeposits - stripeHoldback + unpaidOwnerPayouts + unpaidTaxes + maintenanceReserves
//	actual   = bankBalance + stripeHoldback
//	variance = actual - expected
//
// The account is balanced when |variance| < Tolerance. Each component has its own function
// so it can be queried alone, and Calculate composes them over a ledger.State.
//
// # Three-way check
//
// Unpaid payouts are computed twice: once over the whole ledger and once grouped by owner.
// Their difference is the owner reconciliation variance. Reservations on properties without
// an owner are counted only in the aggregate and show up here. A result is three-way
// balanced when it is balanced and that difference is within Tolerance.
//
// Active reservations with missing or inverted stay dates are left out of every component
// and listed in Result.Excluded.
//
// Service adds the processor holdback lookup, immutable snapshots, archiving to object
// storage and the reconciliation.saved event.
package trust
