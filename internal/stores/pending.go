package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PendingClaimStore marks pending second-factor tokens as used.
type PendingClaimStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewPendingClaimStore returns a claim store keyed under prefix (default "apc").
func NewPendingClaimStore(redisClient redis.UniversalClient, prefix string) *PendingClaimStore {
	if prefix == "" {
		prefix = "apc"
	}
	return &PendingClaimStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *PendingClaimStore) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

// Claim records tokenID as used for ttl. It returns ErrAlreadyClaimed if another caller got
// there first.
func (s *PendingClaimStore) Claim(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	if tokenID == "" {
		return errors.New("token id is required")
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := s.redis.SetNX(ctx, s.key(tokenID), userID, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if !ok {
		return ErrAlreadyClaimed
	}
	return nil
}

// Claimed reports whether tokenID has been used.
func (s *PendingClaimStore) Claimed(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return n > 0, nil
}
