// Package scheduler wires up the cron job that requeues stranded runs, so a
// lost enqueue or a dead worker never leaves a run stuck in queued forever.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const strandedAfter = 5 * time.Minute

// Store lists runs that never left the queued state.
type Store interface {
	ListStrandedRuns(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error)
}

// Enqueuer pushes run ids back onto the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, runID uuid.UUID) error
}

// Scheduler wraps robfig/cron and manages the requeue loop.
type Scheduler struct {
	cron   *cron.Cron
	store  Store
	queue  Enqueuer
	logger *zap.Logger
	spec   string
}

// New creates a Scheduler that sweeps every intervalMinutes minutes.
func New(store Store, queue Enqueuer, logger *zap.Logger, intervalMinutes int) *Scheduler {
	if intervalMinutes < 1 {
		intervalMinutes = 5
	}

	return &Scheduler{
		cron:   cron.New(),
		store:  store,
		queue:  queue,
		logger: logger,
		spec:   fmt.Sprintf("@every %dm", intervalMinutes),
	}
}

// Start registers the sweep and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.requeueStranded(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("requeue scheduler started", zap.String("spec", s.spec))

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("requeue scheduler stopped")
}

func (s *Scheduler) requeueStranded(ctx context.Context) {
	ids, err := s.store.ListStrandedRuns(ctx, strandedAfter)
	if err != nil {
		s.logger.Error("failed to list stranded runs", zap.Error(err))
		return
	}

	if len(ids) == 0 {
		return
	}

	requeued := 0
	for _, id := range ids {
		if err := s.queue.Enqueue(ctx, id); err != nil {
			s.logger.Error("failed to requeue run", zap.String("run_id", id.String()), zap.Error(err))
			continue
		}
		requeued++
	}

	s.logger.Info("stranded runs requeued",
		zap.Int("found", len(ids)),
		zap.Int("requeued", requeued),
	)
}
