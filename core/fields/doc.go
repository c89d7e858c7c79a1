// Package fields resolves loosely-typed values out of external JSON payloads.
//
// External platforms rename fields between API versions and encode the same value as a
// number in one response and a string in the next. Instead of per-field fallback code,
// adapters describe each field once as a list of candidate paths:
//
//	total := rec.Decimal("money.subTotalPrice", "money.subtotal")
//	checkIn := rec.Time("checkInDateLocalized", "checkIn")
//
// The first path that is present and converts to the requested type wins. Missing or
// unconvertible values resolve to the zero value (or nil / false ok), never to an error,
// so one malformed field cannot abort a batch.
package fields
