package service

import (
	"context"

	"github.com/rs/zerolog"

	"marketsnap/internal/provider"
	"marketsnap/internal/provider/retry"
	"marketsnap/internal/snapshot"
	"marketsnap/internal/store"
)

// Service orchestrates one capture pipeline: fetch a normalized series
// through the (rate-limited, cached) provider client with bounded retry,
// build the canonical snapshot, and upsert it into the history.
type Service struct {
	client  provider.Client
	store   *store.Store
	persist store.Persistence
	clock   snapshot.Clock
	retry   retry.Config
	mode    provider.Mode
	log     zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPersistence makes every upsert durable through p.
func WithPersistence(p store.Persistence) Option {
	return func(s *Service) { s.persist = p }
}

// WithClock overrides the capture clock.
func WithClock(c snapshot.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRetry overrides the retry budget.
func WithRetry(cfg retry.Config) Option {
	return func(s *Service) { s.retry = cfg }
}

// WithMode selects the history depth requested from the provider.
func WithMode(m provider.Mode) Option {
	return func(s *Service) { s.mode = m }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func New(client provider.Client, st *store.Store, opts ...Option) *Service {
	s := &Service{
		client: client,
		store:  st,
		clock:  snapshot.SystemClock{},
		retry:  retry.Default,
		mode:   provider.ModeFull,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build fetches and normalizes a snapshot for symbol without touching the
// store. Rate-limited fetches are retried within the configured budget.
func (s *Service) Build(ctx context.Context, symbol string) (snapshot.Snapshot, error) {
	series, err := retry.Do(ctx, s.retry, func(ctx context.Context) (provider.Series, error) {
		return s.client.FetchSeries(ctx, symbol, s.mode)
	})
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	snap, err := snapshot.Build(series, s.client.Name(), s.clock)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	snap.Symbol = symbol
	return snap, nil
}

// Capture builds a snapshot and records it in the history.
func (s *Service) Capture(ctx context.Context, symbol string) (snapshot.Snapshot, error) {
	snap, err := s.Build(ctx, symbol)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	if err := s.record(symbol, snap); err != nil {
		return snapshot.Snapshot{}, err
	}
	s.log.Debug().Str("symbol", symbol).Str("asOf", snap.AsOf).Float64("price", snap.Price).Msg("snapshot captured")
	return snap, nil
}

// CaptureRelative builds subject and benchmark snapshots concurrently,
// merges them into a relative record, and stores the merged subject
// snapshot. Fail-fast: either fetch failing fails the capture.
func (s *Service) CaptureRelative(ctx context.Context, symbol, benchmarkSymbol string) (snapshot.RelativeSnapshot, error) {
	rel, err := snapshot.ComposeRelative(ctx, symbol, benchmarkSymbol, s.Build)
	if err != nil {
		return snapshot.RelativeSnapshot{}, err
	}
	if err := s.record(symbol, rel.Snapshot); err != nil {
		return snapshot.RelativeSnapshot{}, err
	}
	s.log.Debug().Str("symbol", symbol).Str("benchmark", benchmarkSymbol).Msg("relative snapshot captured")
	return rel, nil
}

func (s *Service) record(symbol string, snap snapshot.Snapshot) error {
	s.store.Upsert(symbol, snap)
	if s.persist == nil {
		return nil
	}
	return s.store.Persist(s.persist)
}

// History returns the stored history for symbol, newest first.
func (s *Service) History(symbol string) []snapshot.Snapshot {
	return s.store.History(symbol)
}

// Latest returns the newest stored snapshot for symbol.
func (s *Service) Latest(symbol string) (snapshot.Snapshot, bool) {
	return s.store.Latest(symbol)
}

// Clear resets the stored history for symbol.
func (s *Service) Clear(symbol string) error {
	s.store.Clear(symbol)
	if s.persist == nil {
		return nil
	}
	return s.store.Persist(s.persist)
}
