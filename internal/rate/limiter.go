package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	MaxCodeAttempts  int
	CodeCooldown     time.Duration
}

// Limiter counts failed login and second-factor attempts in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited when email has exhausted its failed-login budget.
func (l *Limiter) CheckLogin(ctx context.Context, email string) error {
	return l.checkCounter(ctx, loginKey(email), l.config.MaxLoginAttempts)
}

// IncrementLogin records a failed login for email.
func (l *Limiter) IncrementLogin(ctx context.Context, email string) error {
	return l.increment(ctx, loginKey(email), l.config.MaxLoginAttempts, l.config.LoginCooldown)
}

// ResetLogin clears the failed-login counter after a correct password.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	return l.reset(ctx, loginKey(email))
}

// CheckCode returns ErrRateLimited when userID has exhausted its failed-code budget.
func (l *Limiter) CheckCode(ctx context.Context, userID string) error {
	return l.checkCounter(ctx, codeKey(userID), l.config.MaxCodeAttempts)
}

// IncrementCode records a failed second-factor code for userID.
func (l *Limiter) IncrementCode(ctx context.Context, userID string) error {
	return l.increment(ctx, codeKey(userID), l.config.MaxCodeAttempts, l.config.CodeCooldown)
}

// ResetCode clears the failed-code counter after a correct code.
func (l *Limiter) ResetCode(ctx context.Context, userID string) error {
	return l.reset(ctx, codeKey(userID))
}

// Attempts returns the failed-login count for email. Missing keys return zero.
func (l *Limiter) Attempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, loginKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	if maxAttempts <= 0 {
		return nil
	}
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) increment(ctx context.Context, key string, maxAttempts int, ttl time.Duration) error {
	if maxAttempts <= 0 {
		return nil
	}
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func loginKey(email string) string {
	return "al:" + email
}

func codeKey(userID string) string {
	return "a2f:" + userID
}
