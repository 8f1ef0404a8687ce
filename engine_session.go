package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mentorloop/authcore/internal/stores"
	"github.com/mentorloop/authcore/jwt"
	"github.com/mentorloop/authcore/permission"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// VerifySession describes the verifysession operation and its observable behavior.
//
// VerifySession decodes and validates a session token and returns its principal. It never
// touches the identity store; use [Engine.Identity] to re-hydrate profile data. Pending
// tokens are rejected. Expired tokens fail with [ErrTokenExpired], every other failure with
// [ErrInvalidToken].
func (e *Engine) VerifySession(ctx context.Context, token string) (*Principal, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}
	}()

	if token == "" {
		e.metricInc(MetricSessionRejected)
		return nil, ErrInvalidToken
	}

	claims, err := e.tokens.Verify(token, jwt.KindSession)
	if err != nil {
		e.metricInc(MetricSessionRejected)
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	role, err := permission.ParseRole(claims.Role)
	if err != nil {
		e.metricInc(MetricSessionRejected)
		return nil, ErrInvalidToken
	}

	return &Principal{UserID: claims.UID, Role: role}, nil
}

// Authorize verifies token and requires the principal's role to be in allowed. Role failures
// return [ErrForbidden].
func (e *Engine) Authorize(ctx context.Context, token string, allowed permission.RoleSet) (*Principal, error) {
	p, err := e.VerifySession(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := permission.RequireRole(*p, allowed); err != nil {
		e.metricInc(MetricForbidden)
		e.emitAudit(ctx, auditEventAuthorizationForbidden, false, p.UserID, ErrForbidden, func() map[string]string {
			return map[string]string{"role": p.Role.String(), "allowed": allowed.String()}
		})
		return nil, ErrForbidden
	}
	return p, nil
}

// Identity loads the client-safe summary of userID from the store.
func (e *Engine) Identity(ctx context.Context, userID string) (*IdentitySummary, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrMalformedInput
	}
	rec, err := e.store.FindByID(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return rec.Summary(), nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout is best-effort cleanup for the identity behind sessionToken: cached external-service
// tokens are dropped and the event is audited. It never fails; problems are logged. Session
// tokens stay valid until expiry, so the transport must clear both cookies regardless.
func (e *Engine) Logout(ctx context.Context, sessionToken string) {
	if e == nil || e.tokens == nil {
		return
	}
	e.metricInc(MetricLogout)

	claims, err := e.tokens.Verify(sessionToken, jwt.KindSession)
	if err != nil {
		e.emitAudit(ctx, auditEventLogout, true, "", nil, func() map[string]string {
			return map[string]string{"authenticated": "false"}
		})
		return
	}

	if e.externalTokens != nil {
		dropped, err := e.externalTokens.DeleteAll(ctx, claims.UID)
		if err != nil {
			e.log().Warn("drop external tokens on logout", zap.String("user_id", claims.UID), zap.Error(err))
		} else if dropped > 0 {
			e.emitAudit(ctx, auditEventExternalTokensRevoked, true, claims.UID, nil, func() map[string]string {
				return map[string]string{"count": strconv.FormatInt(dropped, 10)}
			})
		}
	}

	e.emitAudit(ctx, auditEventLogout, true, claims.UID, nil, nil)
}

// CacheExternalToken stores the OAuth token of a linked external service for userID until
// logout or the configured TTL. It requires Redis.
//
// The engine never links providers itself: the embedding application calls this after its own
// provider callback has exchanged the authorization code. [Engine.Logout] drops whatever was
// cached here.
func (e *Engine) CacheExternalToken(ctx context.Context, userID, provider string, tok *oauth2.Token) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if userID == "" || provider == "" || tok == nil || tok.AccessToken == "" {
		return ErrMalformedInput
	}
	if e.externalTokens == nil {
		return fmt.Errorf("%w: external token cache requires redis", ErrUnavailable)
	}
	if err := e.externalTokens.Save(ctx, userID, provider, tok); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ExternalToken returns a cached external-service token, or [ErrNotFound].
func (e *Engine) ExternalToken(ctx context.Context, userID, provider string) (*oauth2.Token, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.externalTokens == nil {
		return nil, fmt.Errorf("%w: external token cache requires redis", ErrUnavailable)
	}
	tok, err := e.externalTokens.Get(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, stores.ErrTokenNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tok, nil
}
