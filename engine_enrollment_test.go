package authcore

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestEnrollDoesNotPersist(t *testing.T) {
	store := newFakeIdentityStore(t)
	engine := newTestEngine(t, store, engineOptions{})

	enrollment, err := engine.EnrollSecondFactor(context.Background(), "u1")
	if err != nil {
		t.Fatalf("EnrollSecondFactor failed: %v", err)
	}
	if enrollment.Secret == "" {
		t.Fatal("expected a secret")
	}
	if !strings.HasPrefix(enrollment.QRImage, "data:image/png;base64,") {
		t.Fatalf("unexpected QR image prefix: %.40s", enrollment.QRImage)
	}

	u, err := url.Parse(enrollment.ProvisioningURI)
	if err != nil {
		t.Fatalf("provisioning uri does not parse: %v", err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" {
		t.Fatalf("unexpected provisioning uri %q", enrollment.ProvisioningURI)
	}
	q := u.Query()
	if q.Get("secret") != enrollment.Secret || q.Get("issuer") != "Mentorloop" {
		t.Fatalf("unexpected provisioning query %v", q)
	}
	if !strings.Contains(u.Path, "a@x.com") {
		t.Fatalf("expected account in label, got %q", u.Path)
	}

	rec, _ := store.get("u1")
	if rec.TwoFactorEnabled || rec.TwoFactorSecret != "" {
		t.Fatalf("enrollment must not persist anything: %+v", rec)
	}
	if store.enableCalls != 0 {
		t.Fatalf("expected no store writes, got %d", store.enableCalls)
	}

	second, err := engine.EnrollSecondFactor(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second EnrollSecondFactor failed: %v", err)
	}
	if second.Secret == enrollment.Secret {
		t.Fatal("expected a fresh secret per enrollment")
	}
}

func TestConfirmSecondFactorEnables(t *testing.T) {
	store := newFakeIdentityStore(t)
	engine := newTestEngine(t, store, engineOptions{})

	secret := enrollSecondFactor(t, engine, "u1")

	rec, _ := store.get("u1")
	if !rec.TwoFactorEnabled || rec.TwoFactorSecret != secret {
		t.Fatalf("expected secret and flag persisted together, got %+v", rec)
	}

	res, err := engine.Login(context.Background(), "a@x.com", "pw1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.TwoFactorRequired {
		t.Fatal("expected login to require the second factor after confirmation")
	}
}

func TestConfirmSecondFactorAcceptsLowercaseSecret(t *testing.T) {
	store := newFakeIdentityStore(t)
	engine := newTestEngine(t, store, engineOptions{})

	enrollment, err := engine.EnrollSecondFactor(context.Background(), "u1")
	if err != nil {
		t.Fatalf("EnrollSecondFactor failed: %v", err)
	}
	code := codeForNow(t, engine, enrollment.Secret)
	if err := engine.ConfirmSecondFactor(context.Background(), "u1", code, strings.ToLower(enrollment.Secret)); err != nil {
		t.Fatalf("ConfirmSecondFactor failed: %v", err)
	}
	if rec, _ := store.get("u1"); rec.TwoFactorSecret != enrollment.Secret {
		t.Fatalf("expected canonical secret, got %q", rec.TwoFactorSecret)
	}
}

func TestConfirmSecondFactorWrongCode(t *testing.T) {
	store := newFakeIdentityStore(t)
	engine := newTestEngine(t, store, engineOptions{})

	enrollment, err := engine.EnrollSecondFactor(context.Background(), "u1")
	if err != nil {
		t.Fatalf("EnrollSecondFactor failed: %v", err)
	}

	err = engine.ConfirmSecondFactor(context.Background(), "u1", wrongCode(t, engine, enrollment.Secret), enrollment.Secret)
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	rec, _ := store.get("u1")
	if rec.TwoFactorEnabled || rec.TwoFactorSecret != "" {
		t.Fatalf("record must be untouched, got %+v", rec)
	}
}

func TestEnrollmentErrors(t *testing.T) {
	engine := newTestEngine(t, newFakeIdentityStore(t), engineOptions{})

	if _, err := engine.EnrollSecondFactor(context.Background(), ""); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if _, err := engine.EnrollSecondFactor(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := engine.ConfirmSecondFactor(context.Background(), "u1", "123456", ""); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if err := engine.ConfirmSecondFactor(context.Background(), "missing", "123456", "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnrollmentRefusedWhileEnabled(t *testing.T) {
	store := newFakeIdentityStore(t)
	engine := newTestEngine(t, store, engineOptions{})
	ctx := context.Background()
	current := enrollSecondFactor(t, engine, "u2")

	if _, err := engine.EnrollSecondFactor(ctx, "u2"); !errors.Is(err, ErrSecondFactorEnabled) {
		t.Fatalf("expected ErrSecondFactorEnabled from enroll, got %v", err)
	}

	replacement, err := engine.totp.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	err = engine.ConfirmSecondFactor(ctx, "u2", codeForNow(t, engine, replacement), replacement)
	if !errors.Is(err, ErrSecondFactorEnabled) {
		t.Fatalf("expected ErrSecondFactorEnabled from confirm, got %v", err)
	}
	if KindOf(err) != KindMalformedInput {
		t.Fatalf("expected malformed-input kind, got %v", KindOf(err))
	}
	rec, _ := store.get("u2")
	if !rec.TwoFactorEnabled || rec.TwoFactorSecret != current {
		t.Fatalf("active secret must not be replaced, got %+v", rec)
	}
	if store.enableCalls != 1 {
		t.Fatalf("expected a single store write, got %d", store.enableCalls)
	}

	// Rotation: disable with a current code, then enroll again.
	if err := engine.DisableSecondFactor(ctx, "u2", codeForNow(t, engine, current)); err != nil {
		t.Fatalf("DisableSecondFactor failed: %v", err)
	}
	rotated := enrollSecondFactor(t, engine, "u2")
	if rec, _ := store.get("u2"); rec.TwoFactorSecret != rotated || rotated == current {
		t.Fatalf("expected rotated secret, got %+v", rec)
	}
}
