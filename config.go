package authcore

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config defines every tunable of the engine.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token          TokenConfig
	Password       PasswordConfig
	SecondFactor   SecondFactorConfig
	RateLimit      RateLimitConfig
	ExternalTokens ExternalTokenConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls session and pending token signing. PrivateKey is mandatory: there is
// no fallback secret.
type TokenConfig struct {
	SessionTTL    time.Duration
	PendingTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls the bcrypt hasher.
type PasswordConfig struct {
	Cost          int
	RehashOnLogin bool
}

/*
====================================
SECOND FACTOR CONFIG
====================================
*/

// SecondFactorConfig controls TOTP parameters and pending-token reuse.
//
// With EnforceSingleUse set and Redis configured, a pending token is accepted by
// ValidateSecondFactor at most once.
type SecondFactorConfig struct {
	Issuer             string
	Digits             int
	Period             uint
	Skew               uint // steps accepted either side of now; 0 accepts the current step only
	SecretSize         uint
	QRSize             int
	EnforceSingleUse   bool
	PendingClaimPrefix string
}

// RateLimitConfig caps failed logins per email and failed codes per identity. It requires
// Redis; without a client the limits are not enforced.
type RateLimitConfig struct {
	Enabled          bool
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	MaxCodeAttempts  int
	CodeCooldown     time.Duration
}

// ExternalTokenConfig controls the Redis cache of linked-service OAuth tokens.
type ExternalTokenConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the verification latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. Token.PrivateKey is left empty and must be
// supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SessionTTL:    7 * 24 * time.Hour,
			PendingTTL:    10 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "authcore",
		},
		Password: PasswordConfig{
			Cost:          bcrypt.DefaultCost,
			RehashOnLogin: true,
		},
		SecondFactor: SecondFactorConfig{
			Issuer:             "Mentorloop",
			Digits:             6,
			Period:             30,
			Skew:               1,
			SecretSize:         20,
			QRSize:             200,
			EnforceSingleUse:   true,
			PendingClaimPrefix: "apc",
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			MaxLoginAttempts: 5,
			LoginCooldown:    15 * time.Minute,
			MaxCodeAttempts:  5,
			CodeCooldown:     10 * time.Minute,
		},
		ExternalTokens: ExternalTokenConfig{
			RedisPrefix: "aet",
			TTL:         7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	if cfg.Token.VerifyKeys != nil {
		out.Token.VerifyKeys = make(map[string][]byte, len(cfg.Token.VerifyKeys))
		for kid, key := range cfg.Token.VerifyKeys {
			out.Token.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first configuration error found. Build calls it before constructing any
// component, so a process with missing key material fails at start-up.
func (c *Config) Validate() error {
	// Token
	if c.Token.SessionTTL <= 0 {
		return errors.New("Token SessionTTL must be > 0")
	}
	if c.Token.PendingTTL <= 0 {
		return errors.New("Token PendingTTL must be > 0")
	}
	if c.Token.PendingTTL >= c.Token.SessionTTL {
		return errors.New("Token PendingTTL must be shorter than SessionTTL")
	}
	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
		if len(c.Token.PrivateKey) < 32 {
			return errors.New("hs256 PrivateKey must be at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return errors.New("unsupported Token signing method")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Cost < bcrypt.MinCost || c.Password.Cost > bcrypt.MaxCost {
		return errors.New("Password Cost is outside bcrypt limits")
	}

	// Second factor
	if strings.TrimSpace(c.SecondFactor.Issuer) == "" {
		return errors.New("SecondFactor Issuer must be set")
	}
	if c.SecondFactor.Digits != 6 && c.SecondFactor.Digits != 8 {
		return errors.New("SecondFactor Digits must be 6 or 8")
	}
	if c.SecondFactor.Period == 0 {
		return errors.New("SecondFactor Period must be > 0")
	}
	if c.SecondFactor.Skew > 3 {
		return errors.New("SecondFactor Skew must be <= 3")
	}

	// Rate limits
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts <= 0 || c.RateLimit.MaxCodeAttempts <= 0 {
			return errors.New("RateLimit attempt budgets must be > 0")
		}
		if c.RateLimit.LoginCooldown <= 0 || c.RateLimit.CodeCooldown <= 0 {
			return errors.New("RateLimit cooldowns must be > 0")
		}
	}

	// External tokens
	if c.ExternalTokens.TTL <= 0 {
		return errors.New("ExternalTokens TTL must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
