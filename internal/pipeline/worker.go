package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/store"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/utils"
)

const (
	dequeueTimeout      = 5 * time.Second
	dequeueErrorBackoff = 2 * time.Second
)

// Queue hands queued run ids to the worker.
type Queue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error)
}

// Worker drains the run queue and executes one pipeline per run. Runs are
// fully independent, so a failed run never stops the loop.
type Worker struct {
	queue       Queue
	coordinator *Coordinator
	logger      *zap.Logger
}

func NewWorker(queue Queue, coordinator *Coordinator, logger *zap.Logger) *Worker {
	return &Worker{
		queue:       queue,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Start blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("pipeline worker started")

	for {
		runID, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if errors.Is(err, store.ErrQueueEmpty) {
				continue
			}
			if ctx.Err() != nil {
				w.logger.Info("pipeline worker stopping")
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			if err := utils.WaitFor(ctx, dequeueErrorBackoff); err != nil {
				w.logger.Info("pipeline worker stopping")
				return err
			}
			continue
		}

		if err := w.coordinator.Run(ctx, runID); err != nil {
			w.logger.Error("run failed", zap.String("run_id", runID.String()), zap.Error(err))
		}
	}
}
