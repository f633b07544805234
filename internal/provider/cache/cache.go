package cache

import (
	"context"
	"sync"
	"time"

	"marketsnap/internal/provider"
)

type key struct {
	symbol string
	mode   provider.Mode
}

type entry struct {
	expiresAt time.Time
	series    provider.Series
}

// Client caches normalized series per (symbol, mode) for a TTL so that a
// snapshot build and a benchmark build within the same window do not hit
// the provider twice. Errors are never cached.
type Client struct {
	C        provider.Client
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[key]entry
}

func (c *Client) Name() string { return c.C.Name() }

func (c *Client) FetchSeries(ctx context.Context, symbol string, mode provider.Mode) (provider.Series, error) {
	if c.TTL <= 0 {
		return c.C.FetchSeries(ctx, symbol, mode)
	}

	k := key{symbol: symbol, mode: mode}
	now := time.Now()

	c.mu.RLock()
	if e, ok := c.items[k]; ok && now.Before(e.expiresAt) {
		c.mu.RUnlock()
		return e.series, nil
	}
	c.mu.RUnlock()

	s, err := c.C.FetchSeries(ctx, symbol, mode)
	if err != nil {
		return provider.Series{}, err
	}

	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[key]entry)
	}
	c.items[k] = entry{expiresAt: now.Add(c.TTL), series: s}
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// drop expired entries first, then arbitrary ones until under cap
		for kk, e := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if now.After(e.expiresAt) {
				delete(c.items, kk)
			}
		}
		for kk := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			delete(c.items, kk)
		}
	}
	c.mu.Unlock()

	return s, nil
}
