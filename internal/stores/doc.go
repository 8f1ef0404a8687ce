// Package stores provides the Redis-backed short-lived records of the login protocol:
// used-pending-token markers and cached OAuth tokens for linked external services.
//
// # Design
//
// Pending-token markers are claimed with SET NX, so exactly one caller wins a given token id
// and the marker expires with the token. External tokens live in one hash per identity so a
// logout drops them with a single DEL.
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT verify tokens or codes, or decide when a
// claim is required; the Engine does.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Log token values.
package stores
