package stores

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestPendingClaimSingleWinner(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewPendingClaimStore(rdb, "")
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Claim(ctx, "jti-1", "u1", time.Minute)
			if err == nil {
				wins.Add(1)
				return
			}
			if !errors.Is(err, ErrAlreadyClaimed) {
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	claimed, err := s.Claimed(ctx, "jti-1")
	if err != nil || !claimed {
		t.Fatalf("Claimed = %v, %v", claimed, err)
	}
}

func TestPendingClaimExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewPendingClaimStore(rdb, "")
	ctx := context.Background()

	if err := s.Claim(ctx, "jti-2", "u1", 10*time.Minute); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if ttl := mr.TTL("apc:jti-2"); ttl != 10*time.Minute {
		t.Fatalf("unexpected marker ttl %v", ttl)
	}
	mr.FastForward(11 * time.Minute)
	if claimed, _ := s.Claimed(ctx, "jti-2"); claimed {
		t.Fatal("expected marker to expire with the token")
	}
}

func TestPendingClaimBackendDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewPendingClaimStore(rdb, "")
	mr.Close()
	if err := s.Claim(context.Background(), "jti", "u1", time.Minute); !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
}

func TestExternalTokenRoundTripAndDeleteAll(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewExternalTokenStore(rdb, "", time.Hour)
	ctx := context.Background()

	tok := &oauth2.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer"}
	if err := s.Save(ctx, "u1", "github", tok); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, "u1", "google", tok); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ttl := mr.TTL("aet:u1"); ttl != time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	got, err := s.Get(ctx, "u1", "github")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AccessToken != "at" || got.RefreshToken != "rt" {
		t.Fatalf("unexpected token %+v", got)
	}

	n, err := s.DeleteAll(ctx, "u1")
	if err != nil || n != 2 {
		t.Fatalf("DeleteAll = %d, %v", n, err)
	}
	if _, err := s.Get(ctx, "u1", "github"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}
