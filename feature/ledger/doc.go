// Package ledger is the local entity store for properties, reservations, owners,
// tax jurisdictions, settings and the append-only sync and reconciliation histories.
//
// Store wraps a *gorm.DB. Writes that must land together go through Transaction,
// which hands the callback a Store bound to the transaction:
//
//	err := store.Transaction(ctx, func(tx *ledger.Store) error {
//	    _, err := tx.SaveProperty(ctx, p)
//	    return err
//	})
//
// Storage errors are returned as produced by GORM so callers can inspect them.
// Entity validation failures are returned as *models.ValidationError.
package ledger
