// Package store holds what the identity store adapters share. The adapters live in
// sub-packages: memstore keeps identities in memory, mongostore in a MongoDB collection.
package store

import (
	"errors"
	"strings"

	"github.com/mentorloop/authcore/permission"
)

// ErrEmailTaken is returned by Create when the email already belongs to an identity.
var ErrEmailTaken = errors.New("email already registered")

// NewIdentity is the input of the adapters' Create methods.
type NewIdentity struct {
	Email        string
	Name         string
	PasswordHash string
	Role         permission.Role
}

// NormalizeEmail is the lookup form of an email: trimmed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
