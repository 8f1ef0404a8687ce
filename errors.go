package authcore

import (
	"errors"
	"fmt"

	"github.com/mentorloop/authcore/permission"
)

var (
	// ErrInvalidCredentials covers unknown email, missing password hash and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired is returned when a pending second-factor token is missing, invalid,
	// expired or already used.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidToken is returned when a session token fails signature, shape or kind checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a session token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidCode is returned for a wrong or malformed second-factor code.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrNotFound is returned when an identity or its second-factor secret is missing.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a verified principal lacks the required role.
	ErrForbidden = permission.ErrForbidden
	// ErrMalformedInput is returned for empty or structurally invalid input.
	ErrMalformedInput = errors.New("malformed input")
	// ErrRateLimited is returned when an attempt budget is exhausted.
	ErrRateLimited = errors.New("too many attempts")
	// ErrUnavailable wraps identity store and Redis failures.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrSecondFactorEnabled is returned by enrollment calls for an identity that already has
	// an active second factor. Rotation goes through DisableSecondFactor first.
	ErrSecondFactorEnabled = fmt.Errorf("%w: second factor already enabled", ErrMalformedInput)

	// ErrIdentityNotFound is returned by IdentityStore implementations for unknown identities.
	ErrIdentityNotFound = errors.New("identity not found")
)

// ErrorKind classifies engine errors for transports.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindMalformedInput
	KindInvalidCredentials
	KindSessionExpired
	KindInvalidCode
	KindForbidden
	KindNotFound
	KindRateLimited
	KindUnavailable
	KindInternal
)

// KindOf maps err to its ErrorKind. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMalformedInput):
		return KindMalformedInput
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired):
		return KindSessionExpired
	case errors.Is(err, ErrInvalidCode):
		return KindInvalidCode
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrIdentityNotFound):
		return KindNotFound
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// PublicMessage returns the client-safe message for kind. Token problems of every sort share
// one message so callers cannot tell expiry from tampering.
func PublicMessage(kind ErrorKind) string {
	switch kind {
	case KindNone:
		return ""
	case KindMalformedInput:
		return "invalid request"
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindSessionExpired:
		return "invalid or expired session"
	case KindInvalidCode:
		return "invalid verification code"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindRateLimited:
		return "too many attempts, try again later"
	case KindUnavailable:
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}
