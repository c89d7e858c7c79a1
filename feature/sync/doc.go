// Package sync pulls listings and reservations from the booking platform into the ledger.
//
// A run has two phases, each committed in its own transaction:
//
//  1. Properties: every listing is upserted by external id.
//  2. Reservations: reservations with a check-out inside the lookback window are upserted
//     by external id. Totals, management fee, owner payout, the fully-paid flag and the
//     cancellation stamp are recomputed on every upsert, and each reservation is linked to
//     its property by external listing id.
//
// Phase 2 requires the phase 1 commit. If phase 2 fails, phase 1 stays committed.
// Reservations the ledger would reject (missing or inverted stay dates on an active
// reservation, negative amounts) are skipped and counted. Adapter and storage errors are
// returned unmodified, and every run appends a SyncLog row.
//
// Service wraps the Engine with the run guard, tracing and the sync.completed event, and is
// what the HTTP handler and the CLI call.
package sync
