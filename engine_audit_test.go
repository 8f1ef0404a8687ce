package authcore

import (
	"context"
	"strings"
	"testing"
	"time"
)

func collectEvents(t *testing.T, engine *Engine, sink *ChannelSink, want int) []AuditEvent {
	t.Helper()
	engine.Close()

	var events []AuditEvent
	timeout := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("expected %d audit events, got %d", want, len(events))
		}
	}
	return events
}

func TestAuditLoginEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	sink := NewChannelSink(16)
	engine := newTestEngine(t, newFakeIdentityStore(t), engineOptions{cfg: &cfg, sink: sink})

	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.9"), "test-agent")
	if _, err := engine.Login(ctx, "a@x.com", "wrong-pw1"); err == nil {
		t.Fatal("expected login failure")
	}
	if _, err := engine.Login(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	events := collectEvents(t, engine, sink, 2)

	failure, success := events[0], events[1]
	if failure.EventType != auditEventLoginFailure || failure.Success || failure.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("unexpected failure event %+v", failure)
	}
	if success.EventType != auditEventLoginSuccess || !success.Success || success.UserID != "u1" {
		t.Fatalf("unexpected success event %+v", success)
	}
	if success.IP != "203.0.113.9" || success.UserAgent != "test-agent" {
		t.Fatalf("request fields missing from %+v", success)
	}

	for _, ev := range events {
		for k, v := range ev.Metadata {
			if strings.Contains(v, "pw1") || strings.Contains(k, "password") {
				t.Fatalf("audit metadata leaks credentials: %s=%s", k, v)
			}
		}
	}
}

func TestAuditDisabledByDefault(t *testing.T) {
	sink := NewChannelSink(4)
	engine := newTestEngine(t, newFakeIdentityStore(t), engineOptions{sink: sink})

	if _, err := engine.Login(context.Background(), "a@x.com", "pw1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	engine.Close()

	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected audit event %+v", ev)
	default:
	}
}
