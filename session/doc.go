// Package session carries login state between requests in HTTP cookies.
//
// Two cookies exist. [SessionCookie] holds a full session token; [PendingCookie] holds the
// short-lived token issued after a correct password when a second factor is still required.
// Both are HttpOnly, SameSite=Lax and Path "/", and Secure outside development.
//
// # Architecture boundaries
//
// This package only moves opaque token strings in and out of requests and responses. It does
// NOT sign, parse or validate tokens; that belongs to the jwt package and the Engine.
//
// # What this package must NOT do
//
//   - Import authcore, jwt, or permission (no upward imports).
//   - Interpret cookie values.
//   - Expose tokens to scripts (HttpOnly is never disabled).
package session
