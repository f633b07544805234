package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsnap/internal/provider"
	"marketsnap/internal/provider/retry"
	"marketsnap/internal/snapshot"
	"marketsnap/internal/store"
)

// fakeClient serves canned series per symbol and counts fetches. The mutex
// matters because relative captures fetch subject and benchmark in parallel.
type fakeClient struct {
	mu     sync.Mutex
	series map[string]provider.Series
	errs   map[string]error
	calls  map[string]int
	mode   provider.Mode
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		series: map[string]provider.Series{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (c *fakeClient) Name() string { return "fake" }

func (c *fakeClient) FetchSeries(_ context.Context, symbol string, mode provider.Mode) (provider.Series, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[symbol]++
	c.mode = mode
	if err := c.errs[symbol]; err != nil {
		return provider.Series{}, err
	}
	return c.series[symbol], nil
}

func seriesWithCloses(closes ...float64) provider.Series {
	pts := make([]provider.PricePoint, len(closes))
	for i, cl := range closes {
		pts[i] = provider.PricePoint{Date: "2026-02-13", Close: cl}
	}
	return provider.Series{Points: pts}
}

// seriesWithY1 builds a history deep enough for the one-year window:
// newest close last, the close 252 sessions back yearAgo.
func seriesWithY1(last, yearAgo float64) provider.Series {
	pts := make([]provider.PricePoint, 260)
	for i := range pts {
		pts[i] = provider.PricePoint{Date: "2026-02-13", Close: yearAgo}
	}
	pts[0].Close = last
	return provider.Series{Points: pts}
}

func fixedClock() snapshot.FixedClock { return snapshot.FixedClock("2026-02-14") }

func TestCapture_StoresSnapshot(t *testing.T) {
	client := newFakeClient()
	client.series["NVDA"] = seriesWithCloses(100, 99, 98, 97, 96, 95)

	st := store.New()
	svc := New(client, st, WithClock(fixedClock()))

	snap, err := svc.Capture(context.Background(), "NVDA")
	require.NoError(t, err)

	assert.Equal(t, "NVDA", snap.Symbol)
	assert.Equal(t, "2026-02-14", snap.AsOf)
	assert.Equal(t, "fake", snap.Source)

	latest, ok := st.Latest("NVDA")
	require.True(t, ok)
	assert.Equal(t, snap, latest)
}

func TestCapture_SameDayIsIdempotent(t *testing.T) {
	client := newFakeClient()
	client.series["NVDA"] = seriesWithCloses(100, 99, 98, 97, 96, 95)

	st := store.New()
	svc := New(client, st, WithClock(fixedClock()))

	_, err := svc.Capture(context.Background(), "NVDA")
	require.NoError(t, err)
	_, err = svc.Capture(context.Background(), "NVDA")
	require.NoError(t, err)

	assert.Len(t, st.History("NVDA"), 1)
}

func TestCapture_RetriesRateLimit(t *testing.T) {
	client := newFakeClient()
	client.errs["NVDA"] = provider.RateLimited("fake", "throttled")

	st := store.New()
	svc := New(client, st,
		WithClock(fixedClock()),
		WithRetry(retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	_, err := svc.Capture(context.Background(), "NVDA")
	require.Error(t, err)
	assert.True(t, provider.IsRateLimited(err))
	assert.Equal(t, 3, client.calls["NVDA"])
	assert.Empty(t, st.History("NVDA"), "failed capture must not touch the store")
}

func TestCapture_PersistsWhenConfigured(t *testing.T) {
	client := newFakeClient()
	client.series["NVDA"] = seriesWithCloses(100, 99, 98, 97, 96, 95)

	p := &capturingPersistence{}
	svc := New(client, store.New(), WithClock(fixedClock()), WithPersistence(p))

	_, err := svc.Capture(context.Background(), "NVDA")
	require.NoError(t, err)
	require.NotNil(t, p.saved)
	assert.Contains(t, p.saved, "NVDA")
}

type capturingPersistence struct {
	saved map[string][]snapshot.Snapshot
}

func (p *capturingPersistence) Load() (map[string][]snapshot.Snapshot, error) {
	return map[string][]snapshot.Snapshot{}, nil
}

func (p *capturingPersistence) Save(m map[string][]snapshot.Snapshot) error {
	p.saved = m
	return nil
}

func TestCaptureRelative_MergesAndStoresSubject(t *testing.T) {
	client := newFakeClient()
	client.series["NVDA"] = seriesWithY1(110, 100) // y1 = 10.0
	client.series["SPY"] = seriesWithY1(104, 100)  // y1 = 4.0

	st := store.New()
	svc := New(client, st, WithClock(fixedClock()))

	rel, err := svc.CaptureRelative(context.Background(), "NVDA", "SPY")
	require.NoError(t, err)

	assert.Equal(t, "NVDA", rel.Symbol)
	assert.Equal(t, "SPY", rel.Benchmark.Symbol)
	require.NotNil(t, rel.Relative.VsBenchmark.Y1)
	assert.Equal(t, 6.0, *rel.Relative.VsBenchmark.Y1)

	// only the subject lands in the history
	assert.Len(t, st.History("NVDA"), 1)
	assert.Empty(t, st.History("SPY"))
}

func TestCaptureRelative_ShortHistoryLeavesRelativeNil(t *testing.T) {
	client := newFakeClient()
	client.series["NVDA"] = seriesWithCloses(110, 109, 108, 107, 106, 105)
	client.series["SPY"] = seriesWithCloses(104, 103, 102, 101, 100.5, 100)

	svc := New(client, store.New(), WithClock(fixedClock()))

	rel, err := svc.CaptureRelative(context.Background(), "NVDA", "SPY")
	require.NoError(t, err)

	// a week of closes has no one-year window; the relative return stays
	// nil rather than degrading to zero
	assert.Equal(t, "SPY", rel.Benchmark.Symbol)
	assert.Nil(t, rel.Benchmark.Windows.Y1)
	assert.Nil(t, rel.Relative.VsBenchmark.Y1)
}

func TestCaptureRelative_BenchmarkFailureFailsCapture(t *testing.T) {
	client := newFakeClient()
	client.series["NVDA"] = seriesWithCloses(110, 109, 108, 107, 106, 105)
	client.errs["SPY"] = provider.NoData("fake", "unknown symbol")

	st := store.New()
	svc := New(client, st, WithClock(fixedClock()))

	_, err := svc.CaptureRelative(context.Background(), "NVDA", "SPY")
	require.Error(t, err)
	assert.Empty(t, st.History("NVDA"))
}

func TestBuild_DoesNotTouchStore(t *testing.T) {
	client := newFakeClient()
	client.series["NVDA"] = seriesWithCloses(100, 99, 98, 97, 96, 95)

	st := store.New()
	svc := New(client, st, WithClock(fixedClock()))

	_, err := svc.Build(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.Empty(t, st.History("NVDA"))
}

func TestWithMode_PassedToProvider(t *testing.T) {
	client := newFakeClient()
	client.series["NVDA"] = seriesWithCloses(100, 99, 98, 97, 96, 95)

	svc := New(client, store.New(), WithClock(fixedClock()), WithMode(provider.ModeCompact))
	_, err := svc.Capture(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.Equal(t, provider.ModeCompact, client.mode)
}

func TestClear(t *testing.T) {
	client := newFakeClient()
	client.series["NVDA"] = seriesWithCloses(100, 99, 98, 97, 96, 95)

	st := store.New()
	svc := New(client, st, WithClock(fixedClock()))

	_, err := svc.Capture(context.Background(), "NVDA")
	require.NoError(t, err)
	require.NoError(t, svc.Clear("NVDA"))
	assert.Empty(t, svc.History("NVDA"))
}
