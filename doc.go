// Package authcore implements password login, a two-factor "pending" state, TOTP enrollment,
// and role-gated session verification for the mentorship platform.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Protocol
//
// [Engine.Login] checks credentials. Identities without a second factor receive a session token
// immediately; the rest receive a short-lived pending token that only
// [Engine.ValidateSecondFactor] accepts. [Engine.VerifySession] and [Engine.Authorize] gate
// every later request without touching the identity store.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (LoginResult, Enrollment, IdentitySummary). Redis-backed helpers (attempt limits, pending
// token claims, the external token cache) and audit dispatch live under internal/ and are
// never exported. Identity persistence is delegated to an [IdentityStore].
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or token internals in its public API.
//   - Return password hashes or second-factor secrets outside [Engine.EnrollSecondFactor].
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// VerifySession is the hot path. It is pure CPU work: no store or Redis round-trips.
package authcore
