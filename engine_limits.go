package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/mentorloop/authcore/internal/rate"
	"go.uber.org/zap"
)

func (e *Engine) checkLoginLimit(ctx context.Context, email string) error {
	if e.limiter == nil {
		return nil
	}
	if err := e.limiter.CheckLogin(ctx, email); err != nil {
		return e.mapLimitError(ctx, "login", "", err)
	}
	return nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, email string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.IncrementLogin(ctx, email); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.log().Warn("record login failure", e.withRequestFields(ctx, zap.Error(err))...)
	}
}

func (e *Engine) resetLoginLimit(ctx context.Context, email string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.ResetLogin(ctx, email); err != nil {
		e.log().Warn("reset login limiter", zap.Error(err))
	}
}

func (e *Engine) checkCodeLimit(ctx context.Context, userID string) error {
	if e.limiter == nil {
		return nil
	}
	if err := e.limiter.CheckCode(ctx, userID); err != nil {
		return e.mapLimitError(ctx, "second_factor", userID, err)
	}
	return nil
}

func (e *Engine) recordCodeFailure(ctx context.Context, userID string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.IncrementCode(ctx, userID); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.log().Warn("record code failure", zap.String("user_id", userID), zap.Error(err))
	}
}

func (e *Engine) resetCodeLimit(ctx context.Context, userID string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.ResetCode(ctx, userID); err != nil {
		e.log().Warn("reset code limiter", zap.String("user_id", userID), zap.Error(err))
	}
}

func (e *Engine) mapLimitError(ctx context.Context, scope, userID string, err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		e.emitRateLimit(ctx, scope, userID)
		return ErrRateLimited
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
