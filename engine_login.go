package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Login describes the login operation and its observable behavior.
//
// Login verifies email and password. Unknown emails, identities without a password hash and
// wrong passwords all fail with [ErrInvalidCredentials]. Identities without a second factor
// receive a session token and their summary; the rest receive a pending token with
// TwoFactorRequired set and no summary.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" || password == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrMalformedInput, nil)
		return nil, ErrMalformedInput
	}

	if err := e.checkLoginLimit(ctx, email); err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
		}
		return nil, err
	}

	rec, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrIdentityNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		e.hasher.Verify(password, e.dummyHash)
		e.failLogin(ctx, email, "")
		return nil, ErrInvalidCredentials
	}

	if rec.PasswordHash == "" || !e.hasher.Verify(password, rec.PasswordHash) {
		e.failLogin(ctx, email, rec.ID)
		return nil, ErrInvalidCredentials
	}
	if !rec.Role.Valid() {
		e.log().Error("identity has invalid role", zap.String("user_id", rec.ID))
		return nil, fmt.Errorf("identity %s has invalid role", rec.ID)
	}

	e.resetLoginLimit(ctx, email)
	e.maybeRehash(ctx, rec, password)

	if rec.TwoFactorEnabled {
		pending, err := e.tokens.IssuePending(rec.ID, rec.Role.String())
		if err != nil {
			return nil, fmt.Errorf("issue pending token: %w", err)
		}
		e.metricInc(MetricSecondFactorRequired)
		e.emitAudit(ctx, auditEventSecondFactorRequired, true, rec.ID, nil, nil)
		return &LoginResult{
			PendingToken:      pending,
			TwoFactorRequired: true,
		}, nil
	}

	sessionToken, err := e.tokens.IssueSession(rec.ID, rec.Role.String())
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.ID, nil, func() map[string]string {
		return map[string]string{"two_factor": strconv.FormatBool(false)}
	})

	return &LoginResult{
		SessionToken: sessionToken,
		User:         rec.Summary(),
	}, nil
}

func (e *Engine) failLogin(ctx context.Context, email, userID string) {
	e.recordLoginFailure(ctx, email)
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, ErrInvalidCredentials, nil)
}

// maybeRehash upgrades a hash whose bcrypt cost differs from the configured one. Failures are
// logged and never affect the login.
func (e *Engine) maybeRehash(ctx context.Context, rec IdentityRecord, password string) {
	if !e.config.Password.RehashOnLogin || !e.hasher.NeedsRehash(rec.PasswordHash) {
		return
	}
	rehasher, ok := e.store.(PasswordRehasher)
	if !ok {
		e.log().Debug("password hash uses outdated cost", zap.String("user_id", rec.ID))
		return
	}

	hash, err := e.hasher.Hash(password)
	if err != nil {
		e.log().Warn("rehash password", zap.String("user_id", rec.ID), zap.Error(err))
		return
	}
	if err := rehasher.UpdatePasswordHash(ctx, rec.ID, hash); err != nil {
		e.log().Warn("store rehashed password", zap.String("user_id", rec.ID), zap.Error(err))
		return
	}
	e.metricInc(MetricPasswordRehashed)
	e.emitAudit(ctx, auditEventPasswordRehashed, true, rec.ID, nil, nil)
}
