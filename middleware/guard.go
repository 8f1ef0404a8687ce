package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mentorloop/authcore"
	"github.com/mentorloop/authcore/permission"
	"github.com/mentorloop/authcore/session"
)

// Authorizer verifies a session token and checks its role. *authcore.Engine implements it.
type Authorizer interface {
	Authorize(ctx context.Context, token string, allowed permission.RoleSet) (*authcore.Principal, error)
}

// ErrorWriter renders a rejected request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by a guard.
func PrincipalFromContext(ctx context.Context) (*authcore.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*authcore.Principal)
	return p, ok && p != nil
}

// WithPrincipal stores p in ctx the way the guards do.
func WithPrincipal(ctx context.Context, p *authcore.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Guard describes the guard operation and its observable behavior.
//
// Guard rejects requests without a session token, with an invalid or expired one, or whose
// role is not in allowed. onError renders the rejection; nil selects [WriteError].
func Guard(auth Authorizer, allowed permission.RoleSet, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = WriteError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				onError(w, r, authcore.ErrEngineNotReady)
				return
			}

			token, ok := requestToken(r)
			if !ok {
				onError(w, r, authcore.ErrInvalidToken)
				return
			}

			p, err := auth.Authorize(r.Context(), token, allowed)
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func requestToken(r *http.Request) (string, bool) {
	if token, ok := session.SessionToken(r); ok {
		return token, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// WriteError writes the failure envelope with the status of [StatusCode] and the generic
// message of [authcore.PublicMessage].
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(err))
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{
		Success: false,
		Error:   authcore.PublicMessage(authcore.KindOf(err)),
	})
}
