package authcore

import (
	"context"
	"fmt"
	"strings"
)

// EnrollSecondFactor describes the enrollment operation and its observable behavior.
//
// EnrollSecondFactor generates a fresh secret, its provisioning URI and a QR image. Nothing is
// persisted: the secret only becomes active through [Engine.ConfirmSecondFactor]. Identities
// with an active second factor get [ErrSecondFactorEnabled]; replacing a secret requires
// [Engine.DisableSecondFactor] with a current code first.
func (e *Engine) EnrollSecondFactor(ctx context.Context, userID string) (*Enrollment, error) {
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
	if rec.TwoFactorEnabled {
		return nil, ErrSecondFactorEnabled
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate second-factor secret: %w", err)
	}
	uri, err := e.totp.ProvisioningURI(secret, rec.Email)
	if err != nil {
		return nil, fmt.Errorf("build provisioning uri: %w", err)
	}
	qr, err := e.totp.QRImage(uri)
	if err != nil {
		return nil, fmt.Errorf("render qr image: %w", err)
	}

	e.metricInc(MetricEnrollmentStarted)
	e.emitAudit(ctx, auditEventEnrollmentStarted, true, rec.ID, nil, nil)

	return &Enrollment{
		Secret:          secret,
		ProvisioningURI: uri,
		QRImage:         qr,
	}, nil
}

// ConfirmSecondFactor verifies code against the caller-supplied secret from a previous
// enrollment and, on success, persists the secret and enables the second factor in one
// atomic store update. A wrong code returns [ErrInvalidCode] and leaves the record untouched.
// An already enabled second factor is never overwritten: the call fails with
// [ErrSecondFactorEnabled].
func (e *Engine) ConfirmSecondFactor(ctx context.Context, userID, code, secret string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	code = strings.TrimSpace(code)
	secret = strings.ToUpper(strings.TrimSpace(secret))
	if userID == "" || code == "" || secret == "" {
		return ErrMalformedInput
	}

	if err := e.checkCodeLimit(ctx, userID); err != nil {
		return err
	}
	rec, err := e.store.FindByID(ctx, userID)
	if err != nil {
		return mapStoreError(err)
	}
	if rec.TwoFactorEnabled {
		e.metricInc(MetricEnrollmentFailure)
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, rec.ID, ErrSecondFactorEnabled, nil)
		return ErrSecondFactorEnabled
	}

	if !e.totp.Verify(code, secret, e.now()) {
		e.recordCodeFailure(ctx, rec.ID)
		e.metricInc(MetricEnrollmentFailure)
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, rec.ID, ErrInvalidCode, nil)
		return ErrInvalidCode
	}

	if err := e.store.EnableSecondFactor(ctx, rec.ID, secret); err != nil {
		return mapStoreError(err)
	}
	e.resetCodeLimit(ctx, rec.ID)

	e.metricInc(MetricEnrollmentConfirmed)
	e.emitAudit(ctx, auditEventEnrollmentConfirmed, true, rec.ID, nil, nil)
	return nil
}
