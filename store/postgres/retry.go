package postgres

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// retrier holds the backoff settings for dialing the database.
type retrier struct {
	attempts int
	base     time.Duration
	logger   *slog.Logger
}

// retryCall calls fn until it succeeds, r.attempts is used up or ctx ends.
func retryCall[T any](ctx context.Context, r retrier, fn func() (T, error)) (T, error) {
	if r.attempts < 1 {
		r.attempts = 1
	}
	if r.base <= 0 {
		r.base = time.Second
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	var zero T
	var last error
	for i := 0; i < r.attempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		last = err
		if i == r.attempts-1 {
			break
		}
		delay := backoff(r.base, i)
		r.logger.Warn("postgres: connect failed, retrying",
			"attempt", i+1,
			"max_attempts", r.attempts,
			"delay", delay,
			"error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	if r.attempts > 1 {
		r.logger.Error("postgres: all connect attempts failed", "attempts", r.attempts, "error", last)
	}
	return zero, last
}

// maxBackoff caps the delay between attempts.
const maxBackoff = 30 * time.Second

// backoff returns the delay after attempt i (0-indexed):
// base * 2^i plus up to 50% random jitter, never more than maxBackoff.
func backoff(base time.Duration, i int) time.Duration {
	exp := maxBackoff
	if i < 32 && base < maxBackoff>>i {
		exp = base << i
	}
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return min(exp+jitter, maxBackoff)
}
