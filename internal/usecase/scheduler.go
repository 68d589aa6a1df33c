package usecase

import (
	"context"
	"log/slog"
	"time"

	"MovieCurator/internal/ports"
)

// Scheduler wires the interval driver with the curation use case.
// Scheduled runs are never forced, so the staleness window decides whether work happens.
type Scheduler struct {
	driver  ports.Scheduler
	curator *Curator
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring curation.
func NewScheduler(driver ports.Scheduler, curator *Curator, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, curator: curator, logger: logger.With("component", "scheduler")}
}

// Start registers the curator with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.curator == nil {
		return nil
	}

	job := func(trigger time.Time) {
		result := s.curator.Curate(ctx, CurateRequest{})
		switch {
		case result.Skipped:
			s.logger.Debug("scheduled curation skipped", "trigger", trigger)
		case !result.Success:
			s.logger.Warn("scheduled curation failed", "trigger", trigger, "error_code", result.ErrorCode, "error", result.Error)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

// Serve runs the scheduler until ctx is cancelled, matching suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		s.logger.Warn("stop scheduler", "error", err)
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string {
	return "curation-scheduler"
}
