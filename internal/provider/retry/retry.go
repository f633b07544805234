package retry

import (
	"context"
	"time"

	"marketsnap/internal/provider"
)

// Config bounds the retry loop.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Default matches provider free-tier throttling: three attempts with a
// 1.5s base delay.
var Default = Config{MaxAttempts: 3, BaseDelay: 1500 * time.Millisecond}

// Do runs op until it succeeds or the attempt budget is spent. Only
// rate-limited provider errors are retried; every other failure propagates
// immediately. The delay before attempt i grows linearly: attempt 2 waits
// 1×BaseDelay, attempt 3 waits 2×BaseDelay. After the last attempt the
// final error is returned as-is, unwrapped.
//
// Each attempt restarts op from scratch; there is no resumption of a
// partial attempt.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = Default.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = Default.BaseDelay
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := cfg.BaseDelay * time.Duration(attempt-1)
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return zero, ctx.Err()
			case <-t.C:
			}
		}
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !provider.IsRateLimited(err) {
			return zero, err
		}
	}
	return zero, lastErr
}
