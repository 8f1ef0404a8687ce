// Package envconfig loads the server settings from an optional TOML file, an optional .env
// file and the process environment, in increasing order of precedence.
package envconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/mentorloop/authcore"
)

// Config is the flat server configuration.
type Config struct {
	HTTPAddr        string        `toml:"http_addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	Production      bool          `toml:"production"`
	CookieDomain    string        `toml:"cookie_domain"`
	LogLevel        string        `toml:"log_level"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`

	SigningMethod string        `toml:"signing_method"`
	SigningKey    string        `toml:"signing_key"`
	PublicKey     string        `toml:"public_key"`
	Issuer        string        `toml:"issuer"`
	SessionTTL    time.Duration `toml:"session_ttl"`
	PendingTTL    time.Duration `toml:"pending_ttl"`

	TOTPIssuer string `toml:"totp_issuer"`

	RateLimitEnabled bool `toml:"rate_limit_enabled"`
	AuditEnabled     bool `toml:"audit_enabled"`
	MetricsEnabled   bool `toml:"metrics_enabled"`

	// SeedEmail and SeedPassword create one admin identity in the in-memory store.
	SeedEmail    string `toml:"seed_email"`
	SeedPassword string `toml:"seed_password"`
}

// Default returns development defaults. SigningKey is empty and must be supplied.
func Default() Config {
	return Config{
		HTTPAddr:         ":8080",
		ShutdownTimeout:  10 * time.Second,
		LogLevel:         "info",
		MongoDatabase:    "mentorloop",
		MongoCollection:  "users",
		SigningMethod:    "hs256",
		Issuer:           "authcore",
		SessionTTL:       7 * 24 * time.Hour,
		PendingTTL:       10 * time.Minute,
		TOTPIssuer:       "Mentorloop",
		RateLimitEnabled: true,
		MetricsEnabled:   true,
	}
}

// Load builds the configuration. tomlPath may be empty; dotenvPath is read only when the file
// exists. Values already present in the environment win over .env entries.
func Load(tomlPath, dotenvPath string) (Config, error) {
	cfg := Default()

	if tomlPath != "" {
		if _, err := toml.DecodeFile(tomlPath, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", tomlPath, err)
		}
	}

	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			if err := godotenv.Load(dotenvPath); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", dotenvPath, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.ShutdownTimeout = getenvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.Production = getenvBool("PRODUCTION", c.Production)
	c.CookieDomain = getenv("COOKIE_DOMAIN", c.CookieDomain)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)

	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getenvInt("REDIS_DB", c.RedisDB)

	c.MongoURI = getenv("MONGO_URI", c.MongoURI)
	c.MongoDatabase = getenv("MONGO_DATABASE", c.MongoDatabase)
	c.MongoCollection = getenv("MONGO_COLLECTION", c.MongoCollection)

	c.SigningMethod = strings.ToLower(getenv("JWT_SIGNING_METHOD", c.SigningMethod))
	c.SigningKey = getenvKey("JWT_SECRET", c.SigningKey)
	c.PublicKey = getenvKey("JWT_PUBLIC_KEY", c.PublicKey)
	c.Issuer = getenv("JWT_ISSUER", c.Issuer)
	c.SessionTTL = getenvDuration("SESSION_TTL", c.SessionTTL)
	c.PendingTTL = getenvDuration("PENDING_TTL", c.PendingTTL)

	c.TOTPIssuer = getenv("TOTP_ISSUER", c.TOTPIssuer)

	c.RateLimitEnabled = getenvBool("RATE_LIMIT_ENABLED", c.RateLimitEnabled)
	c.AuditEnabled = getenvBool("AUDIT_ENABLED", c.AuditEnabled)
	c.MetricsEnabled = getenvBool("METRICS_ENABLED", c.MetricsEnabled)

	c.SeedEmail = getenv("SEED_EMAIL", c.SeedEmail)
	c.SeedPassword = getenv("SEED_PASSWORD", c.SeedPassword)
}

// Validate checks what the server needs before it builds anything.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR must be set")
	}
	if c.SigningKey == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.Production && c.RedisAddr == "" {
		return errors.New("REDIS_ADDR must be set in production")
	}
	if c.MongoURI != "" && (c.MongoDatabase == "" || c.MongoCollection == "") {
		return errors.New("MONGO_DATABASE and MONGO_COLLECTION must be set with MONGO_URI")
	}
	if (c.SeedEmail == "") != (c.SeedPassword == "") {
		return errors.New("SEED_EMAIL and SEED_PASSWORD must be set together")
	}
	return nil
}

// Engine maps the settings onto an engine configuration.
func (c Config) Engine() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.Token.SigningMethod = c.SigningMethod
	cfg.Token.PrivateKey = []byte(c.SigningKey)
	if c.PublicKey != "" {
		cfg.Token.PublicKey = []byte(c.PublicKey)
	}
	cfg.Token.Issuer = c.Issuer
	cfg.Token.SessionTTL = c.SessionTTL
	cfg.Token.PendingTTL = c.PendingTTL
	cfg.SecondFactor.Issuer = c.TOTPIssuer
	cfg.RateLimit.Enabled = c.RateLimitEnabled
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	return cfg
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getenvKey reads key material from KEY_FILE or KEY. Escaped newlines in PEM values are
// expanded.
func getenvKey(key, fallback string) string {
	if file := os.Getenv(key + "_FILE"); file != "" {
		if data, err := os.ReadFile(file); err == nil {
			return normalizePEM(string(data))
		}
	}
	if val := os.Getenv(key); val != "" {
		return normalizePEM(val)
	}
	return fallback
}

func normalizePEM(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "\\n") && !strings.Contains(value, "\n") {
		value = strings.ReplaceAll(value, "\\n", "\n")
	}
	return value
}
