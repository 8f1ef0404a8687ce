package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mentorloop/authcore/permission"
	"golang.org/x/oauth2"
)

func loginSession(t *testing.T, engine *Engine, email, pw string) string {
	t.Helper()
	res, err := engine.Login(context.Background(), email, pw)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return res.SessionToken
}

func TestVerifySessionDoesNotTouchStore(t *testing.T) {
	store := newFakeIdentityStore(t)
	engine := newTestEngine(t, store, engineOptions{})
	token := loginSession(t, engine, "a@x.com", "pw1")

	before := store.calls()
	for i := 0; i < 5; i++ {
		if _, err := engine.VerifySession(context.Background(), token); err != nil {
			t.Fatalf("VerifySession failed: %v", err)
		}
	}
	if after := store.calls(); after != before {
		t.Fatalf("VerifySession hit the store: %d -> %d calls", before, after)
	}
}

func TestVerifySessionExpired(t *testing.T) {
	clock := newTestClock()
	engine := newTestEngine(t, newFakeIdentityStore(t), engineOptions{clock: clock})
	token := loginSession(t, engine, "a@x.com", "pw1")

	clock.Advance(6 * 24 * time.Hour)
	if _, err := engine.VerifySession(context.Background(), token); err != nil {
		t.Fatalf("token must be valid within seven days: %v", err)
	}

	clock.Advance(2 * 24 * time.Hour)
	_, err := engine.VerifySession(context.Background(), token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if KindOf(err) != KindSessionExpired {
		t.Fatalf("expected KindSessionExpired, got %v", KindOf(err))
	}
}

func TestVerifySessionRejectsInvalidTokens(t *testing.T) {
	engine := newTestEngine(t, newFakeIdentityStore(t), engineOptions{})
	token := loginSession(t, engine, "a@x.com", "pw1")

	other := testConfig()
	other.Token.PrivateKey = []byte("a-different-signing-key-0123456789abcdef")
	foreign := newTestEngine(t, newFakeIdentityStore(t), engineOptions{cfg: &other})
	foreignToken := loginSession(t, foreign, "a@x.com", "pw1")

	for name, tok := range map[string]string{
		"empty":       "",
		"garbage":     "abc.def.ghi",
		"truncated":   token[:len(token)-4],
		"foreign key": foreignToken,
	} {
		if _, err := engine.VerifySession(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestAuthorize(t *testing.T) {
	engine := newTestEngine(t, newFakeIdentityStore(t), engineOptions{})
	student := loginSession(t, engine, "a@x.com", "pw1")
	mentor := loginSession(t, engine, "b@x.com", "pw2")

	mentorsOnly := permission.Roles(permission.Mentor, permission.Admin)

	if _, err := engine.Authorize(context.Background(), student, mentorsOnly); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	p, err := engine.Authorize(context.Background(), mentor, mentorsOnly)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if p.UserID != "u2" {
		t.Fatalf("unexpected principal %+v", p)
	}
	if _, err := engine.Authorize(context.Background(), "garbage", mentorsOnly); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricForbidden]; got != 1 {
		t.Fatalf("expected 1 forbidden, got %d", got)
	}
}

func TestIdentity(t *testing.T) {
	store := newFakeIdentityStore(t)
	engine := newTestEngine(t, store, engineOptions{})

	summary, err := engine.Identity(context.Background(), "u2")
	if err != nil {
		t.Fatalf("Identity failed: %v", err)
	}
	if summary.Name != "Bob" || summary.Role != permission.Mentor {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := engine.Identity(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLogoutDropsExternalTokens(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := newTestEngine(t, newFakeIdentityStore(t), engineOptions{redis: rdb})
	token := loginSession(t, engine, "a@x.com", "pw1")

	ext := &oauth2.Token{AccessToken: "ext-access", RefreshToken: "ext-refresh", TokenType: "Bearer"}
	if err := engine.CacheExternalToken(context.Background(), "u1", "calendar", ext); err != nil {
		t.Fatalf("CacheExternalToken failed: %v", err)
	}
	got, err := engine.ExternalToken(context.Background(), "u1", "calendar")
	if err != nil {
		t.Fatalf("ExternalToken failed: %v", err)
	}
	if got.AccessToken != "ext-access" || got.RefreshToken != "ext-refresh" {
		t.Fatalf("unexpected cached token %+v", got)
	}

	engine.Logout(context.Background(), token)

	if _, err := engine.ExternalToken(context.Background(), "u1", "calendar"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after logout, got %v", err)
	}
	// Stateless sessions stay valid until expiry.
	if _, err := engine.VerifySession(context.Background(), token); err != nil {
		t.Fatalf("VerifySession after logout failed: %v", err)
	}
}

func TestLogoutNeverFails(t *testing.T) {
	mr, rdb := newTestRedis(t)
	engine := newTestEngine(t, newFakeIdentityStore(t), engineOptions{redis: rdb})
	token := loginSession(t, engine, "a@x.com", "pw1")

	engine.Logout(context.Background(), "")
	engine.Logout(context.Background(), "garbage")

	mr.Close()
	engine.Logout(context.Background(), token)

	if got := engine.MetricsSnapshot().Counters[MetricLogout]; got != 3 {
		t.Fatalf("expected 3 logouts, got %d", got)
	}
}

func TestExternalTokenCacheRequiresRedis(t *testing.T) {
	engine := newTestEngine(t, newFakeIdentityStore(t), engineOptions{})

	err := engine.CacheExternalToken(context.Background(), "u1", "calendar", &oauth2.Token{AccessToken: "x"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := engine.CacheExternalToken(context.Background(), "u1", "calendar", nil); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestVerifyLatencyObserved(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	engine := newTestEngine(t, newFakeIdentityStore(t), engineOptions{cfg: &cfg})
	token := loginSession(t, engine, "a@x.com", "pw1")

	if _, err := engine.VerifySession(context.Background(), token); err != nil {
		t.Fatalf("VerifySession failed: %v", err)
	}

	var total uint64
	for _, n := range engine.MetricsSnapshot().Histograms[MetricVerifyLatency] {
		total += n
	}
	if total != 1 {
		t.Fatalf("expected 1 latency observation, got %d", total)
	}
}

func BenchmarkVerifySession(b *testing.B) {
	store := newFakeIdentityStore(b)
	engine, err := New().WithConfig(testConfig()).WithIdentityStore(store).Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	res, err := engine.Login(context.Background(), "a@x.com", "pw1")
	if err != nil {
		b.Fatalf("Login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.VerifySession(context.Background(), res.SessionToken); err != nil {
			b.Fatalf("VerifySession failed: %v", err)
		}
	}
}
