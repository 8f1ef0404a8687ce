package authcore

import (
	"context"

	internalaudit "github.com/mentorloop/authcore/internal/audit"
	"github.com/mentorloop/authcore/permission"
	"go.uber.org/zap"
)

// IdentityRecord is the stored view of an identity. PasswordHash is empty for identities that
// sign in only through an external OAuth provider. TwoFactorSecret is non-empty exactly when
// TwoFactorEnabled is true.
type IdentityRecord struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	Role             permission.Role
	TwoFactorSecret  string
	TwoFactorEnabled bool
}

// Summary returns the client-safe projection of r.
func (r IdentityRecord) Summary() *IdentitySummary {
	return &IdentitySummary{
		ID:    r.ID,
		Name:  r.Name,
		Email: r.Email,
		Role:  r.Role,
	}
}

// IdentitySummary is the only identity data ever returned to clients.
type IdentitySummary struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  permission.Role `json:"role"`
}

// IdentityStore is the persistence boundary the engine consumes. Lookups return
// [ErrIdentityNotFound] for unknown identities; any other error is treated as a backend
// failure. FindByEmail receives a trimmed, lower-cased email.
//
// EnableSecondFactor must write the secret and the enabled flag in one atomic update, and
// DisableSecondFactor must clear both the same way.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (IdentityRecord, error)
	FindByID(ctx context.Context, id string) (IdentityRecord, error)
	EnableSecondFactor(ctx context.Context, id, secret string) error
	DisableSecondFactor(ctx context.Context, id string) error
}

// PasswordRehasher is implemented by stores that can replace a password hash. When the store
// provides it and Config.Password.RehashOnLogin is set, hashes with an outdated cost are
// upgraded after a successful login.
type PasswordRehasher interface {
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// Principal is the verified identity carried by a session token.
type Principal = permission.Principal

// LoginResult is returned by [Engine.Login] and [Engine.ValidateSecondFactor]. Exactly one of
// SessionToken and PendingToken is set. User is nil while a second factor is pending.
type LoginResult struct {
	SessionToken      string
	PendingToken      string
	TwoFactorRequired bool
	User              *IdentitySummary
}

// Enrollment carries a freshly generated, not yet persisted second-factor secret.
type Enrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
	QRImage         string `json:"qrImage"`
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// ZapSink is an [AuditSink] that writes events to a zap logger.
type ZapSink = internalaudit.ZapSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewZapSink creates a [ZapSink] that logs through logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
