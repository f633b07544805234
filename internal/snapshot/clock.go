package snapshot

import "time"

// Clock supplies the capture date. Injected so tests can pin AsOf.
type Clock interface {
	TodayUTC() string
}

// SystemClock stamps with the current UTC calendar date.
type SystemClock struct{}

func (SystemClock) TodayUTC() string {
	return time.Now().UTC().Format("2006-01-02")
}

// FixedClock always returns the same date. Test helper.
type FixedClock string

func (c FixedClock) TodayUTC() string { return string(c) }
