package authcore

import (
	"errors"
	"time"

	internalaudit "github.com/mentorloop/authcore/internal/audit"
	"github.com/mentorloop/authcore/internal/rate"
	"github.com/mentorloop/authcore/internal/stores"
	"github.com/mentorloop/authcore/jwt"
	"github.com/mentorloop/authcore/password"
	"github.com/mentorloop/authcore/totp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Redis is optional; without it attempt limits, single-use
// pending tokens and the external token cache are disabled.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     IdentityStore
	auditSink AuditSink
	logger    *zap.Logger
	clock     func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New starts from [DefaultConfig]; callers must at least supply Token.PrivateKey and an
// identity store before Build.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the Redis-backed guards.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityStore sets the identity persistence boundary. Required.
func (b *Builder) WithIdentityStore(store IdentityStore) *Builder {
	b.store = store
	return b
}

// WithAuditSink sets the audit destination. When audit is enabled without a sink, events go
// to the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token and code checks.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the verification latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, constructs every component and returns a ready Engine.
// A Builder can be used only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("identity store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	engine := &Engine{
		config: cfg,
		store:  b.store,
		logger: logger.Named("authcore"),
		clock:  clock,
	}

	hasher, err := password.NewBcrypt(cfg.Password.Cost)
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher
	dummy, err := hasher.Hash("authcore-dummy-password")
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	jm, err := jwt.NewManager(jwt.Config{
		SessionTTL:    cfg.Token.SessionTTL,
		PendingTTL:    cfg.Token.PendingTTL,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
		KeyID:         cfg.Token.KeyID,
		VerifyKeys:    cfg.Token.VerifyKeys,
		Clock:         clock,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	te, err := totp.New(totp.Config{
		Issuer:     cfg.SecondFactor.Issuer,
		Digits:     cfg.SecondFactor.Digits,
		Period:     cfg.SecondFactor.Period,
		Skew:       cfg.SecondFactor.Skew,
		SecretSize: cfg.SecondFactor.SecretSize,
		QRSize:     cfg.SecondFactor.QRSize,
		ExactStep:  cfg.SecondFactor.Skew == 0,
	})
	if err != nil {
		return nil, err
	}
	engine.totp = te

	if b.redis != nil {
		engine.pendingClaims = stores.NewPendingClaimStore(b.redis, cfg.SecondFactor.PendingClaimPrefix)
		engine.externalTokens = stores.NewExternalTokenStore(b.redis, cfg.ExternalTokens.RedisPrefix, cfg.ExternalTokens.TTL)
		if cfg.RateLimit.Enabled {
			engine.limiter = rate.New(b.redis, rate.Config{
				MaxLoginAttempts: cfg.RateLimit.MaxLoginAttempts,
				LoginCooldown:    cfg.RateLimit.LoginCooldown,
				MaxCodeAttempts:  cfg.RateLimit.MaxCodeAttempts,
				CodeCooldown:     cfg.RateLimit.CodeCooldown,
			})
		}
	} else {
		engine.logger.Info("redis not configured; attempt limits and single-use pending tokens disabled")
	}

	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = internalaudit.NewZapSink(logger)
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
