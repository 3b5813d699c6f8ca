// Package authcore provides a credential and session security engine for HR-portal
// style backends: Argon2 password hashing with a strength policy, from-scratch
// HOTP/TOTP two-factor verification, single-use backup codes, magic-link sign-in,
// Redis-backed session management with revocation, fixed-window rate limiting, and
// durable login-failure lockout.
//
// The package is designed for concurrent server workloads: Engine methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], the
// [CredentialStore] contract, and value types (LoginResult, SessionInfo,
// MetricsSnapshot, etc.). Internal coordination — random token material, rate
// limiting — lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or encoding details in its public API.
//   - Persist full bearer tokens, raw backup codes, or raw magic-link tokens anywhere.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build, which runs one calibration hash).
//
// # Performance contract
//
// Validate is the hot path. In ModeJWTOnly it must complete without Redis
// round-trips; in ModeStrict it is allowed one session lookup plus a best-effort
// activity touch. Login and account operations are allowed a handful of Redis
// round-trips per call.
package authcore
