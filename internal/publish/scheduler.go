package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers a publication of every runner service on a cron
// schedule. Failed runs are logged; the schedule keeps going.
type Scheduler struct {
	runner *Runner
	spec   string
	cron   *cron.Cron
}

// NewScheduler validates the cron expression (standard five fields or a
// descriptor such as "@daily").
func NewScheduler(runner *Runner, spec string) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{runner: runner, spec: spec, cron: c}
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule until ctx is cancelled, then waits for a running
// job to finish.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("publication scheduler started", "schedule", s.spec)
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	slog.Info("publication scheduler stopped")
}

func (s *Scheduler) tick() {
	// Cron jobs are not cancelled on shutdown; Start waits for them instead.
	ctx := context.Background()
	for _, svc := range s.runner.Services() {
		res, err := s.runner.Run(ctx, svc, "schedule")
		switch {
		case errors.Is(err, ErrRunInProgress):
			slog.Info("scheduled run skipped, previous run still going", "service", svc)
		case err != nil:
			slog.Error("scheduled run failed", "service", svc, "error", err)
		default:
			slog.Info("scheduled run completed", "service", svc, "changed", res.Changed)
		}
	}
}
