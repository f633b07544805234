package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler re-captures a fixed set of tracked symbols on a cron cadence
// so the stored histories keep growing without manual requests.
type Scheduler struct {
	cron      *cron.Cron
	svc       *Service
	symbols   []string
	benchmark string
	timeout   time.Duration
	log       zerolog.Logger
}

func NewScheduler(svc *Service, symbols []string, benchmark string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		svc:       svc,
		symbols:   symbols,
		benchmark: benchmark,
		timeout:   5 * time.Minute,
		log:       log,
	}
}

// Start registers the refresh job under spec (standard 5-field cron
// expression) and starts the scheduler.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.refresh); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("cron", spec).Strs("symbols", s.symbols).Msg("snapshot refresh scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// refresh captures every tracked symbol. One symbol failing does not stop
// the rest; failures are logged and the next run retries naturally.
func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	for _, symbol := range s.symbols {
		var err error
		if s.benchmark != "" && s.benchmark != symbol {
			_, err = s.svc.CaptureRelative(ctx, symbol, s.benchmark)
		} else {
			_, err = s.svc.Capture(ctx, symbol)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("scheduled capture failed")
			continue
		}
		s.log.Info().Str("symbol", symbol).Msg("scheduled capture done")
	}
}
