package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// ExternalTokenStore caches OAuth tokens of linked external services per identity.
type ExternalTokenStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewExternalTokenStore returns a token cache keyed under prefix whose entries expire after ttl.
func NewExternalTokenStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *ExternalTokenStore {
	if prefix == "" {
		prefix = "aet"
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &ExternalTokenStore{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *ExternalTokenStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// Save stores tok for (userID, provider) and refreshes the hash expiry.
func (s *ExternalTokenStore) Save(ctx context.Context, userID, provider string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("token is required")
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}

	key := s.key(userID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, provider, data)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Get returns the cached token for (userID, provider).
func (s *ExternalTokenStore) Get(ctx context.Context, userID, provider string) (*oauth2.Token, error) {
	data, err := s.redis.HGet(ctx, s.key(userID), provider).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return &tok, nil
}

// DeleteAll drops every cached token of userID and reports how many providers were removed.
func (s *ExternalTokenStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	key := s.key(userID)
	n, err := s.redis.HLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return n, nil
}
