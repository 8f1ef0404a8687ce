package authcore

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventSecondFactorRequired   = "second_factor_required"
	auditEventSecondFactorSuccess    = "second_factor_success"
	auditEventSecondFactorFailure    = "second_factor_failure"
	auditEventPendingReplay          = "pending_token_replay"
	auditEventEnrollmentStarted      = "second_factor_enrollment_started"
	auditEventEnrollmentConfirmed    = "second_factor_enabled"
	auditEventEnrollmentFailure      = "second_factor_enrollment_failure"
	auditEventSecondFactorDisabled   = "second_factor_disabled"
	auditEventLogout                 = "logout"
	auditEventRateLimitTriggered     = "rate_limit_triggered"
	auditEventExternalTokensRevoked  = "external_tokens_dropped"
	auditEventPasswordRehashed       = "password_rehashed"
	auditEventAuthorizationForbidden = "authorization_forbidden"
)

// AuditErrorCode is the stable error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrMalformedInput     AuditErrorCode = "malformed_input"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope, userID string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, userID, ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrMalformedInput):
		return auditErrMalformedInput
	case errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrIdentityNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
