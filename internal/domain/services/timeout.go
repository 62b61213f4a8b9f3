package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
)

// WithTimeout runs fn and stops waiting for it after d. The context handed to
// fn is cancelled at the deadline, but fn may keep running until it notices.
// A non-positive d waits indefinitely.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			var zero T
			return zero, fmt.Errorf("%w after %s", apperrors.ErrDeadlineExceeded, d)
		}
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", apperrors.ErrDeadlineExceeded, d)
		}
		return zero, ctx.Err()
	}
}
