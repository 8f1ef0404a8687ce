package permission

import "errors"

// ErrForbidden is returned when a principal's role is outside the allowed set.
var ErrForbidden = errors.New("forbidden")

// Principal is a verified caller: the subject of a valid session token.
type Principal struct {
	UserID string
	Role   Role
}

// RequireRole returns p unchanged when its role is in allowed and ErrForbidden otherwise.
// It performs no I/O and ignores everything but the role.
func RequireRole(p Principal, allowed RoleSet) (Principal, error) {
	if p.UserID == "" || !allowed.Has(p.Role) {
		return Principal{}, ErrForbidden
	}
	return p, nil
}
