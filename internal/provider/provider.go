package provider

import (
	"context"
	"math"
)

// Mode selects how much daily history a provider should return.
type Mode int

const (
	// ModeFull requests the complete daily history the provider offers.
	ModeFull Mode = iota
	// ModeCompact requests a short recent window (roughly the last 100
	// sessions). Providers without a compact endpoint treat it as ModeFull.
	ModeCompact
)

// PricePoint is one normalized daily close. Date is an ISO-8601 calendar
// date (YYYY-MM-DD), which makes lexicographic and chronological order
// identical.
type PricePoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// Fundamentals carries optional company metrics in raw units. Market cap is
// in plain currency units (not millions or billions); downstream layers own
// any rescaling. Fields are nil when the provider did not return a usable
// value.
type Fundamentals struct {
	MarketCap  *float64
	TrailingPE *float64
	Beta       *float64
}

// Series is the normalized shape returned by all providers: daily closes
// newest first, an optional live quote, and best-effort fundamentals.
// Points never contains NaN or infinite closes.
type Series struct {
	Points       []PricePoint
	LivePrice    *float64
	Fundamentals Fundamentals
}

// Closes returns the close prices newest first.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// LatestDate returns the date of the newest close, or "" for a quote-only
// series.
func (s Series) LatestDate() string {
	if len(s.Points) == 0 {
		return ""
	}
	return s.Points[0].Date
}

// Client fetches a normalized series for one symbol.
type Client interface {
	Name() string
	FetchSeries(ctx context.Context, symbol string, mode Mode) (Series, error)
}

// IsISODate reports whether s looks like YYYY-MM-DD. Providers key their
// histories by date string; anything that fails this check is dropped
// rather than risking a wrong sort order.
func IsISODate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, c := range s {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Finite reports whether f is a usable number (not NaN, not ±Inf).
func Finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
