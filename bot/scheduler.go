package bot

import (
	"context"
	"sync"

	"modbot/scanner"

	"go.uber.org/zap"
)

// Scheduler manages the background jobs.
type Scheduler struct {
	sweeper *scanner.Sweeper
	logger  *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler.
func NewScheduler(sweeper *scanner.Sweeper, logger *zap.Logger) *Scheduler {
	return &Scheduler{sweeper: sweeper, logger: logger.Named("scheduler")}
}

// Start begins all scheduled jobs. They stop when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweeper.Run(ctx)
	}()
}

// Stop terminates all scheduled jobs and waits for them to return.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.logger.Info("Stopping scheduler")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}
