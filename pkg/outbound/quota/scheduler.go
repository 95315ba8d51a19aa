package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic quota sweep: it persists the monthly
// counters of every registered governor and logs percent-of-budget
// usage. The sweep complements the per-call async persistence and gives
// a durable snapshot even on quiet providers.
type Scheduler struct {
	governors map[string]*Governor
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a sweep scheduler for the given governors.
//
// Common cron expressions:
//   - "0 * * * *"   - Hourly, on the hour
//   - "*/15 * * * *" - Every 15 minutes
func NewScheduler(governors map[string]*Governor, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		governors: governors,
		schedule:  schedule,
		cron:      cron.New(),
		logger:    logger.With("component", "quota.sweep"),
	}
}

// Start begins the scheduled sweep. If the schedule is empty, the
// scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("quota sweep schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid quota sweep schedule %q: %w", s.schedule, err)
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule quota sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("quota sweep scheduled", "schedule", s.schedule)
	return nil
}

// Stop cancels the scheduled sweep and waits for a running sweep to
// finish. Safe to call when never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running = false
	s.logger.Info("quota sweep stopped")
}

// sweep persists every governor's counters and logs usage.
func (s *Scheduler) sweep(ctx context.Context) {
	for name, governor := range s.governors {
		governor.Persist(ctx)

		stats := governor.Stats()
		s.logger.Info("quota usage",
			"provider", name,
			"requests_this_month", stats.RequestsThisMonth,
			"budget", stats.Budget,
			"percent_used", fmt.Sprintf("%.1f", stats.PercentUsed),
		)
	}
}
