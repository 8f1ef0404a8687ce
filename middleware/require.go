package middleware

import (
	"net/http"

	"github.com/mentorloop/authcore/permission"
)

// RequireSession admits any request carrying a valid session token.
func RequireSession(auth Authorizer, onError ErrorWriter) func(http.Handler) http.Handler {
	return Guard(auth, permission.AnyRole(), onError)
}

// RequireRole admits only principals holding one of roles. With no roles every request is
// rejected as forbidden.
func RequireRole(auth Authorizer, onError ErrorWriter, roles ...permission.Role) func(http.Handler) http.Handler {
	return Guard(auth, permission.Roles(roles...), onError)
}
