package authcore

import (
	"context"
	"strings"
	"time"

	internalaudit "github.com/mentorloop/authcore/internal/audit"
	"github.com/mentorloop/authcore/internal/rate"
	"github.com/mentorloop/authcore/internal/stores"
	"github.com/mentorloop/authcore/jwt"
	"github.com/mentorloop/authcore/password"
	"github.com/mentorloop/authcore/totp"
	"go.uber.org/zap"
)

// Engine runs the login protocol. It holds only read-only configuration, key material and
// handles to external stores.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config         Config
	store          IdentityStore
	hasher         *password.Bcrypt
	tokens         *jwt.Manager
	totp           *totp.Engine
	limiter        *rate.Limiter
	pendingClaims  *stores.PendingClaimStore
	externalTokens *stores.ExternalTokenStore
	audit          *internalaudit.Dispatcher
	metrics        *Metrics
	logger         *zap.Logger
	clock          func() time.Time

	// dummyHash is compared against on unknown emails so both failure paths cost one bcrypt
	// verification.
	dummyHash string
}

// Close describes the close operation and its observable behavior.
//
// Close flushes and stops the audit dispatcher. It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// AuditDropped returns how many audit events were dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// RedisEnabled reports whether attempt limits, single-use pending tokens and the external
// token cache are active.
func (e *Engine) RedisEnabled() bool {
	return e != nil && e.pendingClaims != nil
}

// SessionTTL returns the session token lifetime.
func (e *Engine) SessionTTL() time.Duration {
	return e.config.Token.SessionTTL
}

// PendingTTL returns the pending token lifetime.
func (e *Engine) PendingTTL() time.Duration {
	return e.config.Token.PendingTTL
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.tokens != nil && e.hasher != nil && e.totp != nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) log() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

func (e *Engine) withRequestFields(ctx context.Context, fields ...zap.Field) []zap.Field {
	if ip := clientIPFromContext(ctx); ip != "" {
		fields = append(fields, zap.String("ip", ip))
	}
	return fields
}
