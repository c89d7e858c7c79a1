// Package booking is the adapter for the booking platform API.
//
// It fetches listings and reservations and normalizes them into plain structs the
// sync engine can map onto ledger rows. Payload fields are resolved leniently: each
// value is looked up under several known key paths and falls back to zero when absent.
//
// # Authentication
//
// Requests carry an OAuth2 bearer token obtained with the client-credentials grant.
// The token is cached in memory and in the secure store and reused until 60 seconds
// before it expires. A 401 response drops the token and the request is sent once more
// with a fresh one.
//
// # Pagination
//
// Both endpoints are paged with limit/skip at PageSize records per page. A page shorter
// than PageSize ends the walk. Each page request goes through the retry executor.
//
// Reservations are always filtered to check-outs within LookbackWindow of now.
package booking
