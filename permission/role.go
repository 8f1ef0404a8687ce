package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Role is one of the closed set of platform roles.
type Role uint8

const (
	// Student is the default role of a mentee.
	Student Role = iota + 1
	// Mentor is a guide assigned to students.
	Mentor
	// Admin manages the platform.
	Admin
)

// ErrUnknownRole is returned by ParseRole for names outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole maps a stored role name to a Role. Matching ignores case and surrounding space.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return Student, nil
	case "mentor":
		return Mentor, nil
	case "admin":
		return Admin, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case Student, Mentor, Admin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	switch r {
	case Student:
		return "student"
	case Mentor:
		return "mentor"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, r)
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
