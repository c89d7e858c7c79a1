// Package payments is the adapter for the payment platform API.
//
// It reads the account balance and the payout history. Amounts arrive as integers in
// minor currency units and are converted with ToDecimal, which knows the zero-decimal
// currencies.
//
// Requests authenticate with a secret API key kept in the secure store. Every request
// goes through the retry executor; payouts are paged with a cursor until has_more is false.
package payments
