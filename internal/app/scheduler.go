package app

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
)

// jobTimeout bounds a single scheduled run
const jobTimeout = 5 * time.Minute

// Scheduler runs background jobs on cron schedules (seconds field enabled).
type Scheduler struct {
	cron   *cron.Cron
	logger *common.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. Jobs receive a context cancelled by Stop.
func NewScheduler(logger *common.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger.WithComponent("scheduler"),
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]bool),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop cancels in-flight jobs and waits for them to return, including runs
// started with RunNow.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// AddJob registers fn under a cron schedule. Schedule examples:
//   - "0 */5 * * * *"  - every 5 minutes
//   - "0 30 3 * * *"   - 03:30 daily
//   - "@every 30s"     - every 30 seconds
//
// A run is skipped while the previous run of the same job is still going.
func (s *Scheduler) AddJob(schedule, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(schedule, func() { s.run(name, fn) })
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("schedule", schedule).
		Str("job", name).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(name string, fn func(ctx context.Context) error) {
	s.logger.Info().Str("job", name).Msg("Running job immediately")
	s.run(name, fn)
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	if s.running[name] {
		s.mu.Unlock()
		s.logger.Debug().Str("job", name).Msg("Job still running, skipping")
		return
	}
	s.running[name] = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
		s.wg.Done()
	}()

	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Debug().Str("job", name).Msg("Running job")

	if err := fn(ctx); err != nil {
		s.logger.Error().
			Err(err).
			Str("job", name).
			Msg("Job failed")
		return
	}
	s.logger.Debug().Str("job", name).Dur("elapsed", time.Since(start)).Msg("Job completed")
}
