// Package secrets provides the secure key-value store used for platform credentials
// and cached access tokens.
//
// The Store interface is what the adapters depend on. DBStore persists entries in the
// application database; when a sealing key is configured each value is encrypted with
// NaCl secretbox before it is written.
//
// All failures wrap ErrStore so callers can tell a broken store apart from a missing key:
//
//	value, ok, err := store.Read(ctx, "booking.client_id")
//	if err != nil { ... }   // store failure
//	if !ok { ... }          // nothing saved
package secrets
