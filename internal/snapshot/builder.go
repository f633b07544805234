package snapshot

import (
	"marketsnap/internal/provider"
)

// Build assembles the canonical snapshot from a normalized series.
//
// The live quote is preferred for the headline price because it is fresher
// than the close history; windows are always computed close-to-close from
// the series so their semantics do not depend on that choice. AsOf is the
// capture date from the clock, not the date of the newest close.
//
// Fails with an insufficient-data error when the series carries neither a
// usable live quote nor a usable newest close.
func Build(raw provider.Series, source string, clock Clock) (Snapshot, error) {
	price, ok := selectPrice(raw)
	if !ok {
		return Snapshot{}, provider.InsufficientData(source, "no usable price")
	}

	snap := Snapshot{
		AsOf:         clock.TodayUTC(),
		Price:        Round2(price),
		Windows:      ComputeWindows(raw.Closes(), true),
		Fundamentals: buildFundamentals(raw.Fundamentals),
		Source:       source,
	}
	return snap, nil
}

func selectPrice(raw provider.Series) (float64, bool) {
	if raw.LivePrice != nil && *raw.LivePrice > 0 && provider.Finite(*raw.LivePrice) {
		return *raw.LivePrice, true
	}
	if len(raw.Points) > 0 {
		c := raw.Points[0].Close
		if c > 0 && provider.Finite(c) {
			return c, true
		}
	}
	return 0, false
}

// buildFundamentals passes metrics through, rescaling market cap from raw
// currency units to billions with one decimal. Unusable values stay nil;
// absence is never rendered as zero.
func buildFundamentals(f provider.Fundamentals) Fundamentals {
	out := Fundamentals{}
	if f.MarketCap != nil && provider.Finite(*f.MarketCap) && *f.MarketCap > 0 {
		b := Round1(*f.MarketCap / 1e9)
		out.MarketCapB = &b
	}
	if f.TrailingPE != nil && provider.Finite(*f.TrailingPE) {
		pe := *f.TrailingPE
		out.PE = &pe
	}
	if f.Beta != nil && provider.Finite(*f.Beta) {
		beta := *f.Beta
		out.Beta = &beta
	}
	return out
}
