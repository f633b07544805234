package snapshot

import "math"

// Trading-day offsets for each window, counted back from the newest close.
const (
	offsetW1 = 5
	offsetM1 = 22
	offsetM3 = 66
	offsetM6 = 132
	offsetY1 = 252
)

// minHistory is the fewest closes for which any window is computed. Below
// this every window is nil; a handful of sessions would only produce
// misleading returns.
const minHistory = 6

// ComputeWindows derives the trailing percentage returns from an ordered
// close series. Pass newestFirst=false for ascending input; the series is
// reindexed, not mutated. A window is nil when the series is too short for
// its offset or the past close is zero or non-finite.
func ComputeWindows(closes []float64, newestFirst bool) Windows {
	if !newestFirst {
		closes = reversed(closes)
	}
	if len(closes) < minHistory {
		return Windows{}
	}
	last := closes[0]
	return Windows{
		W1: windowReturn(last, closes, offsetW1),
		M1: windowReturn(last, closes, offsetM1),
		M3: windowReturn(last, closes, offsetM3),
		M6: windowReturn(last, closes, offsetM6),
		Y1: windowReturn(last, closes, offsetY1),
	}
}

func windowReturn(last float64, closes []float64, offset int) *float64 {
	if offset >= len(closes) {
		return nil
	}
	past := closes[offset]
	if past == 0 || math.IsNaN(past) || math.IsInf(past, 0) ||
		math.IsNaN(last) || math.IsInf(last, 0) {
		return nil
	}
	v := Round1((last/past - 1) * 100)
	return &v
}

// Round1 rounds half away from zero to one decimal place. All window
// values use this so results are deterministic across providers.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round2 rounds half away from zero to two decimal places (price fields).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func reversed(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
