package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"marketsnap/internal/provider"
)

// Limited wraps a client and gates every fetch through a token bucket.
type Limited struct {
	C provider.Client
	L *rate.Limiter
}

// PerMinute builds a limiter allowing rpm requests per minute with the
// given burst (minimum 1).
func PerMinute(c provider.Client, rpm, burst int) *Limited {
	if burst <= 0 {
		burst = 1
	}
	return &Limited{C: c, L: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)}
}

func (l *Limited) Name() string { return l.C.Name() }

func (l *Limited) FetchSeries(ctx context.Context, symbol string, mode provider.Mode) (provider.Series, error) {
	if l.L != nil {
		if err := l.L.Wait(ctx); err != nil {
			return provider.Series{}, err
		}
	}
	return l.C.FetchSeries(ctx, symbol, mode)
}

// MinInterval wraps a client and enforces a minimum time between calls.
// Concurrent calls wait until the interval has elapsed since the last
// call, or return early if the context is canceled.
type MinInterval struct {
	C        provider.Client
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.C.Name() }

func (m *MinInterval) FetchSeries(ctx context.Context, symbol string, mode provider.Mode) (provider.Series, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return provider.Series{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	s, err := m.C.FetchSeries(ctx, symbol, mode)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return s, err
}
