// Package maintenance runs periodic cleanup jobs on a cron schedule.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/homewise/internal/metrics"
	"github.com/robfig/cron/v3"
)

const (
	JobExpiredSessions = "expired_sessions"
	JobRateLimiter     = "rate_limiter"
	JobSentOutbox      = "sent_outbox"
)

type SessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type OutboxPruner interface {
	PruneSent(ctx context.Context, cutoff time.Time) (int64, error)
}

type LimiterCleaner interface {
	Cleanup(idle time.Duration) int
}

type Config struct {
	SessionsSpec  string
	LimiterSpec   string
	OutboxSpec    string
	LimiterIdle   time.Duration
	OutboxRetains time.Duration
}

func (c Config) withDefaults() Config {
	if c.SessionsSpec == "" {
		c.SessionsSpec = "@hourly"
	}
	if c.LimiterSpec == "" {
		c.LimiterSpec = "@hourly"
	}
	if c.OutboxSpec == "" {
		c.OutboxSpec = "@daily"
	}
	if c.LimiterIdle <= 0 {
		c.LimiterIdle = time.Hour
	}
	if c.OutboxRetains <= 0 {
		c.OutboxRetains = 30 * 24 * time.Hour
	}
	return c
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context) (int64, error)
}

// Scheduler owns the cron runner and the registered cleanup jobs.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   []job
	logger *slog.Logger
	cancel context.CancelFunc
	now    func() time.Time
}

func New(sessions SessionPruner, outbox OutboxPruner, limiter LimiterCleaner, cfg Config, logger *slog.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
		now:    time.Now,
	}

	if sessions != nil {
		s.jobs = append(s.jobs, job{JobExpiredSessions, cfg.SessionsSpec, sessions.DeleteExpired})
	}
	if limiter != nil {
		s.jobs = append(s.jobs, job{JobRateLimiter, cfg.LimiterSpec, func(context.Context) (int64, error) {
			return int64(limiter.Cleanup(cfg.LimiterIdle)), nil
		}})
	}
	if outbox != nil {
		s.jobs = append(s.jobs, job{JobSentOutbox, cfg.OutboxSpec, func(ctx context.Context) (int64, error) {
			return outbox.PruneSent(ctx, s.now().Add(-cfg.OutboxRetains))
		}})
	}
	return s
}

// Start registers every job and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		if _, err := s.cron.AddFunc(j.spec, func() { s.run(ctx, j) }); err != nil {
			s.cancel()
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	s.cron.Start()
	s.logger.Info("maintenance scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop halts the runner and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-s.cron.Stop().Done()
}

// RunAll runs every job once, in registration order.
func (s *Scheduler) RunAll(ctx context.Context) {
	for _, j := range s.jobs {
		s.run(ctx, j)
	}
}

func (s *Scheduler) run(ctx context.Context, j job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	removed, err := j.run(ctx)
	if err != nil {
		s.logger.Error("maintenance job failed", "job", j.name, "error", err)
		return
	}
	metrics.RecordMaintenance(j.name, removed)
	s.logger.Debug("maintenance job finished", "job", j.name, "removed", removed, "duration", time.Since(start))
}
