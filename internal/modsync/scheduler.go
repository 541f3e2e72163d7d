package modsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/botpack/internal/logfields"
)

const jobName = "module-sync"

// Scheduler runs a Syncer periodically, starting immediately.
type Scheduler struct {
	scheduler gocron.Scheduler
	syncer    *Syncer
	interval  time.Duration
	logger    *slog.Logger
	ctx       context.Context
}

// NewScheduler creates a scheduler for syncer with the given interval.
func NewScheduler(syncer *Syncer, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("module sync interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, syncer: syncer, interval: interval, logger: logger, ctx: context.Background()}, nil
}

// Start schedules the sync job and begins running it. Runs started by the
// scheduler are canceled when ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.run),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create module sync job: %w", err)
	}

	s.logger.Info("Starting module sync scheduler", logfields.JobName(jobName), slog.Duration("interval", s.interval))
	s.scheduler.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for a running sync to finish.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping module sync scheduler", logfields.JobName(jobName))
	return s.scheduler.Shutdown()
}

func (s *Scheduler) run() {
	if s.ctx.Err() != nil {
		return
	}
	res, err := s.syncer.Sync(s.ctx)
	if err != nil {
		// Already logged by the syncer.
		return
	}
	s.logger.Debug("Scheduled module sync finished",
		logfields.JobName(jobName),
		slog.Bool("updated", res.Updated),
		slog.String("commit", res.Commit))
}
