package authcore

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with key", mutate: func(*Config) {}, wantValid: true},
		{name: "missing key", mutate: func(c *Config) { c.Token.PrivateKey = nil }},
		{name: "short hs256 key", mutate: func(c *Config) { c.Token.PrivateKey = []byte("short") }},
		{name: "unknown signing method", mutate: func(c *Config) { c.Token.SigningMethod = "rs256" }},
		{name: "pending not shorter than session", mutate: func(c *Config) { c.Token.PendingTTL = c.Token.SessionTTL }},
		{name: "zero session ttl", mutate: func(c *Config) { c.Token.SessionTTL = 0 }},
		{name: "excessive leeway", mutate: func(c *Config) { c.Token.Leeway = time.Hour }},
		{name: "bcrypt cost too low", mutate: func(c *Config) { c.Password.Cost = 2 }},
		{name: "empty totp issuer", mutate: func(c *Config) { c.SecondFactor.Issuer = " " }},
		{name: "seven digits", mutate: func(c *Config) { c.SecondFactor.Digits = 7 }},
		{name: "eight digits", mutate: func(c *Config) { c.SecondFactor.Digits = 8 }, wantValid: true},
		{name: "zero period", mutate: func(c *Config) { c.SecondFactor.Period = 0 }},
		{name: "wide skew", mutate: func(c *Config) { c.SecondFactor.Skew = 4 }},
		{name: "zero login budget", mutate: func(c *Config) { c.RateLimit.MaxLoginAttempts = 0 }},
		{name: "zero budget with limits off", mutate: func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.MaxLoginAttempts = 0
		}, wantValid: true},
		{name: "zero external ttl", mutate: func(c *Config) { c.ExternalTokens.TTL = 0 }},
		{name: "audit without buffer", mutate: func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Token.SessionTTL != 7*24*time.Hour {
		t.Fatalf("unexpected session ttl %v", cfg.Token.SessionTTL)
	}
	if cfg.Token.PendingTTL != 10*time.Minute {
		t.Fatalf("unexpected pending ttl %v", cfg.Token.PendingTTL)
	}
	if cfg.Password.Cost != 10 {
		t.Fatalf("unexpected bcrypt cost %d", cfg.Password.Cost)
	}
	if cfg.SecondFactor.Digits != 6 || cfg.SecondFactor.Period != 30 || cfg.SecondFactor.Skew != 1 {
		t.Fatalf("unexpected totp parameters %+v", cfg.SecondFactor)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("defaults without a signing key must not validate")
	}
}

func TestWithConfigCopiesKeyMaterial(t *testing.T) {
	cfg := testConfig()
	cfg.Token.VerifyKeys = map[string][]byte{"old": []byte(testSigningKey)}

	b := New().WithConfig(cfg)
	cfg.Token.PrivateKey[0] ^= 0xff
	cfg.Token.VerifyKeys["old"][0] ^= 0xff

	if b.config.Token.PrivateKey[0] != testSigningKey[0] {
		t.Fatal("builder must not alias caller private key")
	}
	if b.config.Token.VerifyKeys["old"][0] != testSigningKey[0] {
		t.Fatal("builder must not alias caller verify keys")
	}
}
