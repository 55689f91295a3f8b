package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
)

// Sweeper performs one background maintenance pass.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// Scheduler runs a Sweeper on a cron schedule.
type Scheduler struct {
	sweeper  Sweeper
	schedule string
	cron     *cron.Cron
	logger   *logger.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler; schedule is a standard five-field cron
// expression or a descriptor such as "@every 5m". An empty schedule disables it.
func NewScheduler(sweeper Sweeper, schedule string, log *logger.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		schedule: schedule,
		cron:     cron.New(),
		logger:   log.WithComponent("sweep-scheduler"),
	}
}

// Start schedules the sweep and returns immediately. The scheduler stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("Sweep schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Sweep scheduler started (%s)", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	start := time.Now()
	if err := s.sweeper.Sweep(ctx); err != nil {
		s.logger.Error("Scheduled sweep failed: %v", err)
		return
	}
	s.logger.Debug("Scheduled sweep finished in %s", time.Since(start))
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Sweep scheduler stopped")
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep time, or nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
