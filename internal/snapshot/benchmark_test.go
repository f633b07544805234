package snapshot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchFromMap(m map[string]Snapshot) FetchFunc {
	return func(_ context.Context, symbol string) (Snapshot, error) {
		snap, ok := m[symbol]
		if !ok {
			return Snapshot{}, errors.New("unknown symbol " + symbol)
		}
		return snap, nil
	}
}

func TestComposeRelative_SubtractsBenchmarkY1(t *testing.T) {
	fetch := fetchFromMap(map[string]Snapshot{
		"NVDA": {AsOf: "2026-02-14", Price: 182.8, Windows: Windows{Y1: fv(10.0)}, Source: "finnhub"},
		"SPY":  {AsOf: "2026-02-14", Price: 512.3, Windows: Windows{Y1: fv(4.0)}, Source: "finnhub"},
	})

	rel, err := ComposeRelative(context.Background(), "NVDA", "SPY", fetch)
	require.NoError(t, err)

	assert.Equal(t, "NVDA", rel.Symbol)
	assert.Equal(t, 182.8, rel.Price)
	assert.Equal(t, "SPY", rel.Benchmark.Symbol)
	require.NotNil(t, rel.Benchmark.Windows.Y1)
	assert.Equal(t, 4.0, *rel.Benchmark.Windows.Y1)
	require.NotNil(t, rel.Relative.VsBenchmark.Y1)
	assert.Equal(t, 6.0, *rel.Relative.VsBenchmark.Y1)
}

func TestComposeRelative_NilOperandPropagates(t *testing.T) {
	cases := map[string]struct {
		subjY1, benchY1 *float64
	}{
		"subject missing":   {nil, fv(4.0)},
		"benchmark missing": {fv(10.0), nil},
		"both missing":      {nil, nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fetch := fetchFromMap(map[string]Snapshot{
				"NVDA": {AsOf: "2026-02-14", Windows: Windows{Y1: tc.subjY1}},
				"SPY":  {AsOf: "2026-02-14", Windows: Windows{Y1: tc.benchY1}},
			})
			rel, err := ComposeRelative(context.Background(), "NVDA", "SPY", fetch)
			require.NoError(t, err)
			assert.Nil(t, rel.Relative.VsBenchmark.Y1, "missing operand must never act as zero")
		})
	}
}

func TestComposeRelative_FetchErrorFailsWhole(t *testing.T) {
	boom := errors.New("quote endpoint down")
	fetch := func(_ context.Context, symbol string) (Snapshot, error) {
		if symbol == "SPY" {
			return Snapshot{}, boom
		}
		return Snapshot{AsOf: "2026-02-14", Windows: Windows{Y1: fv(10.0)}}, nil
	}

	_, err := ComposeRelative(context.Background(), "NVDA", "SPY", fetch)
	require.ErrorIs(t, err, boom)
}

func TestComposeRelative_FetchesConcurrently(t *testing.T) {
	var inflight, peak atomic.Int32
	gate := make(chan struct{})
	fetch := func(_ context.Context, _ string) (Snapshot, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		if n > peak.Load() {
			peak.Store(n)
		}
		if n == 2 {
			close(gate)
		}
		<-gate
		return Snapshot{Windows: Windows{Y1: fv(1.0)}}, nil
	}

	_, err := ComposeRelative(context.Background(), "NVDA", "SPY", fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), peak.Load(), "subject and benchmark must fetch in parallel")
}
