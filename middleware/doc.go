// Package middleware exposes HTTP guards that authenticate requests with an authcore session
// token and enforce role sets before handing control to the wrapped handler.
//
// # Guards
//
//   - [Guard] verifies the session and checks the principal's role against a [permission.RoleSet].
//   - [RequireSession] accepts any valid role.
//   - [RequireRole] accepts only the listed roles.
//
// Each guard reads the session cookie (falling back to an Authorization bearer header),
// calls the engine and stores the resulting principal in the request context, where
// [PrincipalFromContext] retrieves it.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself; every decision is delegated to the Authorizer.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis or the identity store.
//   - Decide status codes beyond the [StatusCode] mapping of engine errors.
package middleware
