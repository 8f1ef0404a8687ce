// Package jwt signs and verifies the two identity token kinds of the login protocol: full
// session tokens and restricted "2fa_pending" tokens that only unlock the second-factor step.
//
// Verification is pure CPU work. The package never looks up identities; callers that need
// profile data re-hydrate it from their own store after a successful [Manager.Verify].
package jwt
