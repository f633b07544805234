package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure. Only KindRateLimited is retryable.
type Kind int

const (
	// KindRateLimited is a transient throttle signal (HTTP 429 or a textual
	// rate-limit notice in the payload).
	KindRateLimited Kind = iota
	// KindNoData means the provider answered but returned no usable series
	// or quote. Distinct from a zero-length history: the provider told us
	// there is nothing to have.
	KindNoData
	// KindInsufficientData means the normalized data was not enough to
	// produce a snapshot (no price at all).
	KindInsufficientData
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNoData:
		return "no_data"
	case KindInsufficientData:
		return "insufficient_data"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified provider failure. Detail preserves the upstream
// message verbatim so callers can surface the original cause.
type Error struct {
	Kind     Kind
	Provider string
	Detail   string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Detail)
}

// RateLimited builds a retryable throttle error.
func RateLimited(providerName, detail string) *Error {
	return &Error{Kind: KindRateLimited, Provider: providerName, Detail: detail}
}

// NoData builds a no-usable-data error.
func NoData(providerName, detail string) *Error {
	return &Error{Kind: KindNoData, Provider: providerName, Detail: detail}
}

// InsufficientData builds a not-enough-data error.
func InsufficientData(providerName, detail string) *Error {
	return &Error{Kind: KindInsufficientData, Provider: providerName, Detail: detail}
}

// KindOf returns the classification of err and whether err is a provider
// error at all.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// IsRateLimited reports whether err is a retryable rate-limit error.
func IsRateLimited(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindRateLimited
}
