package httpclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/devmarvs/schoolgate/apperr"
)

// BackoffFunc returns the wait before the retry that follows attempt.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff waits base, 2*base, 4*base, ... capped at max when
// max is positive.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	if base <= 0 {
		base = time.Second
	}
	return func(attempt int) time.Duration {
		if attempt <= 1 {
			return base
		}
		shift := attempt - 1
		if shift > 30 {
			shift = 30
		}
		delay := base << shift
		if max > 0 && (delay > max || delay <= 0) {
			return max
		}
		return delay
	}
}

// CallFunc is one attempt of a logical operation.
type CallFunc func(ctx context.Context) (*Result, error)

// Retrier re-attempts idempotent reads on retryable failures.
type Retrier struct {
	Backoff BackoffFunc
	// Sleep waits d or until ctx is done.
	Sleep   func(ctx context.Context, d time.Duration) error
	OnRetry func(attempt int, err error, wait time.Duration)
	Logger  *slog.Logger
}

// NewRetrier builds a Retrier with exponential backoff from base.
func NewRetrier(base, max time.Duration) *Retrier {
	return &Retrier{Backoff: ExponentialBackoff(base, max)}
}

// Do runs call up to maxAttempts times. Non-retryable failures return
// immediately; after the last attempt the last failure is returned.
func (r *Retrier) Do(ctx context.Context, maxAttempts int, call CallFunc) (*Result, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := r.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff(time.Second, 0)
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !apperr.Retryable(err) || attempt == maxAttempts {
			break
		}

		wait := backoff(attempt)
		if r.OnRetry != nil {
			r.OnRetry(attempt, err, wait)
		}
		if r.Logger != nil {
			r.Logger.Debug("retrying call",
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("kind", string(apperr.KindOf(err))),
			)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, contextFailure(ctx, err)
		}
	}
	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
