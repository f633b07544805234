package snapshot

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FetchFunc produces a fresh snapshot for a symbol. Injected so the
// composer does not care which provider (or cache) is behind it.
type FetchFunc func(ctx context.Context, symbol string) (Snapshot, error)

// ComposeRelative fetches the subject and benchmark snapshots concurrently
// and merges them into one relative-performance record.
//
// Fail-fast: if either fetch fails the whole composition fails with that
// error; there is no partial relative record. The relative window is nil
// unless both one-year returns are defined; a missing operand is never
// treated as zero.
func ComposeRelative(ctx context.Context, symbol, benchmarkSymbol string, fetch FetchFunc) (RelativeSnapshot, error) {
	var subject, bench Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subject, err = fetch(gctx, symbol)
		return err
	})
	g.Go(func() error {
		var err error
		bench, err = fetch(gctx, benchmarkSymbol)
		return err
	})
	if err := g.Wait(); err != nil {
		return RelativeSnapshot{}, err
	}

	out := RelativeSnapshot{Snapshot: subject}
	out.Symbol = symbol
	out.Benchmark = Benchmark{
		Symbol:  benchmarkSymbol,
		Windows: BenchmarkWindows{Y1: bench.Windows.Y1},
	}
	if subject.Windows.Y1 != nil && bench.Windows.Y1 != nil {
		d := Round1(*subject.Windows.Y1 - *bench.Windows.Y1)
		out.Relative.VsBenchmark.Y1 = &d
	}
	return out, nil
}
