// Package retry runs operations with exponential backoff and jitter.
//
// Every network round trip made by the external adapters goes through an Executor.
// Failures are classified before being retried:
//
//   - Retryable: timeouts, DNS failures, refused or reset connections, TLS handshake
//     failures and HTTP responses with status >= 500 or 429 (see StatusError).
//   - Fatal: everything else, surfaced immediately as a NonRetryableError.
//
// Cancellation is checked before each attempt and while waiting between attempts.
// A cancelled run returns ErrCancelled and is never reported as exhausted.
//
// # Usage
//
//	ex := retry.New(cfg)
//	out, err := retry.Execute(ctx, ex, func(ctx context.Context, attempt int) (*Page, error) {
//	    return client.fetch(ctx)
//	})
package retry
