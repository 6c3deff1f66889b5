package sched

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pawplan/internal/infra/metrics"
)

// Job is one periodic unit of maintenance work.
type Job interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// Scheduler runs a Job every interval, each run bounded by a timeout.
type Scheduler struct {
	job      Job
	interval time.Duration
	timeout  time.Duration
	log      *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler returns a scheduler for job. If interval <= 0 it defaults to 1 minute.
func NewScheduler(job Job, interval, timeout time.Duration, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	l := logger.With().Str("component", "scheduler").Str("job", job.Name()).Logger()
	return &Scheduler{job: job, interval: interval, timeout: timeout, log: &l}
}

// Start begins the loop in a background goroutine. Calling Start twice has no effect.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs the job once. The loop calls it; tests and the CLI may too.
func (s *Scheduler) Tick(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	if err := s.job.RunOnce(runCtx); err != nil {
		metrics.IncMaintenanceRun(s.job.Name(), "failed")
		s.log.Error().Err(err).Msg("job failed")
		return
	}
	metrics.IncMaintenanceRun(s.job.Name(), "ok")
	s.log.Debug().Dur("took", time.Since(start)).Msg("job done")
}

// Stop cancels the loop and waits for it to finish. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
