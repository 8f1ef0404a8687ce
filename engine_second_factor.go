package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mentorloop/authcore/internal/stores"
	"github.com/mentorloop/authcore/jwt"
	"go.uber.org/zap"
)

// ValidateSecondFactor describes the second-factor step of the login protocol.
//
// pendingToken must be a valid, unexpired "2fa_pending" token; otherwise the call fails with
// [ErrSessionExpired]. A wrong code fails with [ErrInvalidCode] and issues nothing. On
// success a fresh session token is issued from the identity's current stored role, and the
// transport is expected to replace the pending cookie with the session cookie.
//
// When Redis is configured and SecondFactor.EnforceSingleUse is set, a pending token is
// accepted at most once.
func (e *Engine) ValidateSecondFactor(ctx context.Context, pendingToken, code string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	if pendingToken == "" {
		return nil, ErrSessionExpired
	}
	claims, err := e.tokens.Verify(pendingToken, jwt.KindPending)
	if err != nil {
		e.metricInc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, "", ErrSessionExpired, nil)
		return nil, ErrSessionExpired
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrMalformedInput
	}

	if err := e.checkCodeLimit(ctx, claims.UID); err != nil {
		return nil, err
	}

	rec, err := e.findSecondFactor(ctx, claims.UID)
	if err != nil {
		return nil, err
	}

	if !e.totp.Verify(code, rec.TwoFactorSecret, e.now()) {
		e.recordCodeFailure(ctx, rec.ID)
		e.metricInc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, rec.ID, ErrInvalidCode, nil)
		return nil, ErrInvalidCode
	}

	if err := e.claimPending(ctx, claims); err != nil {
		return nil, err
	}
	e.resetCodeLimit(ctx, rec.ID)

	sessionToken, err := e.tokens.IssueSession(rec.ID, rec.Role.String())
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	e.metricInc(MetricSecondFactorSuccess)
	e.emitAudit(ctx, auditEventSecondFactorSuccess, true, rec.ID, nil, nil)

	return &LoginResult{
		SessionToken: sessionToken,
		User:         rec.Summary(),
	}, nil
}

// DisableSecondFactor removes an enrollment after checking a current code. The secret and the
// enabled flag are cleared together by the store.
func (e *Engine) DisableSecondFactor(ctx context.Context, userID, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	code = strings.TrimSpace(code)
	if userID == "" || code == "" {
		return ErrMalformedInput
	}

	if err := e.checkCodeLimit(ctx, userID); err != nil {
		return err
	}
	rec, err := e.findSecondFactor(ctx, userID)
	if err != nil {
		return err
	}

	if !e.totp.Verify(code, rec.TwoFactorSecret, e.now()) {
		e.recordCodeFailure(ctx, rec.ID)
		e.metricInc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, rec.ID, ErrInvalidCode, nil)
		return ErrInvalidCode
	}

	if err := e.store.DisableSecondFactor(ctx, rec.ID); err != nil {
		return mapStoreError(err)
	}
	e.resetCodeLimit(ctx, rec.ID)

	e.metricInc(MetricSecondFactorDisabled)
	e.emitAudit(ctx, auditEventSecondFactorDisabled, true, rec.ID, nil, nil)
	return nil
}

// findSecondFactor loads an identity that must have an active enrollment.
func (e *Engine) findSecondFactor(ctx context.Context, userID string) (IdentityRecord, error) {
	rec, err := e.store.FindByID(ctx, userID)
	if err != nil {
		return IdentityRecord{}, mapStoreError(err)
	}
	if !rec.TwoFactorEnabled || rec.TwoFactorSecret == "" {
		return IdentityRecord{}, fmt.Errorf("%w: no second factor enrolled", ErrNotFound)
	}
	return rec, nil
}

func (e *Engine) claimPending(ctx context.Context, claims *jwt.Claims) error {
	if e.pendingClaims == nil || !e.config.SecondFactor.EnforceSingleUse {
		return nil
	}

	ttl := time.Second
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(e.now()); remaining > ttl {
			ttl = remaining
		}
	}

	err := e.pendingClaims.Claim(ctx, claims.ID, claims.UID, ttl)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrAlreadyClaimed):
		e.metricInc(MetricPendingReplay)
		e.emitAudit(ctx, auditEventPendingReplay, false, claims.UID, ErrSessionExpired, nil)
		return ErrSessionExpired
	default:
		e.log().Error("claim pending token", zap.String("user_id", claims.UID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func mapStoreError(err error) error {
	if errors.Is(err, ErrIdentityNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
