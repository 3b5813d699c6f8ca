// Package rate provides Redis-backed fixed-window rate limiting for the
// credential security engine and its HTTP middleware.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. The window
// starts on the first request and stale counters are reclaimed by Redis key
// expiry, so no sweep goroutine is needed. Counters are shared by every process
// pointed at the same Redis, which makes limits hold across instances.
//
// # What this package must NOT do
//
//   - Implement credential lockout (that is durable state owned by the
//     credential store, not a windowed counter).
//   - Be imported outside this module.
package rate
