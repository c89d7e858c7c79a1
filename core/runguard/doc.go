// Package runguard serializes sync and reconciliation runs.
//
// A Guard hands out one lease per key at a time; a second Acquire for a held key fails
// with ErrBusy instead of waiting. Leases expire after their TTL so a crashed process
// cannot block runs forever.
//
// With a Redis address configured the lock is a SET NX PX key whose value is a random
// token, released only by its holder. Without Redis, LocalGuard keeps the locks in memory,
// which is enough for a single process.
package runguard
