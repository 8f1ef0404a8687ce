// Package permission defines the closed set of platform roles and the pure role check used to
// gate protected operations.
//
// # Roles
//
// Exactly three roles exist: [Student], [Mentor] and [Admin]. The zero [Role] is invalid, so an
// unset role never satisfies a check. Sets of allowed roles are expressed as a [RoleSet]
// bitmask.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. It knows nothing about tokens,
// cookies or credentials; callers hand it an already verified [Principal].
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore, jwt, or session.
//   - Grant access on an unknown role.
package permission
