package middleware

import (
	"net/http"

	"github.com/mentorloop/authcore"
)

// StatusCode maps an engine error to its HTTP status.
func StatusCode(err error) int {
	switch authcore.KindOf(err) {
	case authcore.KindNone:
		return http.StatusOK
	case authcore.KindMalformedInput:
		return http.StatusBadRequest
	case authcore.KindInvalidCredentials, authcore.KindSessionExpired, authcore.KindInvalidCode:
		return http.StatusUnauthorized
	case authcore.KindForbidden:
		return http.StatusForbidden
	case authcore.KindNotFound:
		return http.StatusNotFound
	case authcore.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
