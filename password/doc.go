// Package password implements one-way credential hashing and verification with bcrypt.
//
// # Output format
//
// Hashes are standard bcrypt strings ($2a$<cost>$<salt+hash>). The work factor is fixed per
// [Bcrypt] instance; [Bcrypt.NeedsRehash] reports hashes produced with a different cost so the
// caller can re-hash after the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length, history) is not
// enforced here.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords.
package password
