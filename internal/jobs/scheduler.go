package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"storeadmin/api/internal/revocation"
)

// DefaultSweepSchedule runs at the top of every hour (cron with seconds field).
const DefaultSweepSchedule = "0 0 * * * *"

type SweepRecorder interface {
	AddSwept(n int)
	SetRevokedTokens(n int)
}

type Scheduler struct {
	cron     *cron.Cron
	registry revocation.Registry
	recorder SweepRecorder
	log      zerolog.Logger
}

func NewScheduler(registry revocation.Registry, recorder SweepRecorder, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		registry: registry,
		recorder: recorder,
		log:      log,
	}
}

func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return fmt.Errorf("schedule revocation sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop waits up to five seconds for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("revocation sweep still running at shutdown")
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.SweepNow(ctx); err != nil {
		s.log.Error().Err(err).Msg("revocation sweep failed")
	}
}

// SweepNow evicts expired revocation entries and refreshes the size gauge.
func (s *Scheduler) SweepNow(ctx context.Context) (int, error) {
	removed, err := s.registry.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	size, err := s.registry.Size(ctx)
	if err != nil {
		return removed, err
	}

	if s.recorder != nil {
		s.recorder.AddSwept(removed)
		s.recorder.SetRevokedTokens(size)
	}
	s.log.Info().Int("removed", removed).Int("remaining", size).Msg("revocation sweep done")
	return removed, nil
}
