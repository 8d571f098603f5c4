package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeStore struct {
	ids []uuid.UUID
	err error
}

func (f *fakeStore) ListStrandedRuns(context.Context, time.Duration) ([]uuid.UUID, error) {
	return f.ids, f.err
}

type fakeQueue struct {
	enqueued []uuid.UUID
	failFor  uuid.UUID
}

func (f *fakeQueue) Enqueue(_ context.Context, runID uuid.UUID) error {
	if runID == f.failFor {
		return errors.New("redis down")
	}
	f.enqueued = append(f.enqueued, runID)
	return nil
}

func TestRequeueStranded(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	store := &fakeStore{ids: []uuid.UUID{a, b}}
	queue := &fakeQueue{}

	s := New(store, queue, zap.NewNop(), 5)
	s.requeueStranded(context.Background())

	if len(queue.enqueued) != 2 {
		t.Fatalf("expected 2 requeued, got %d", len(queue.enqueued))
	}
}

func TestRequeueContinuesPastEnqueueFailure(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	store := &fakeStore{ids: []uuid.UUID{a, b}}
	queue := &fakeQueue{failFor: a}

	s := New(store, queue, zap.NewNop(), 5)
	s.requeueStranded(context.Background())

	if len(queue.enqueued) != 1 || queue.enqueued[0] != b {
		t.Fatalf("expected b requeued despite a failing, got %v", queue.enqueued)
	}
}

func TestRequeueToleratesStoreFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: errors.New("db down")}
	queue := &fakeQueue{}

	s := New(store, queue, zap.NewNop(), 5)
	s.requeueStranded(context.Background())

	if len(queue.enqueued) != 0 {
		t.Fatalf("expected nothing enqueued, got %v", queue.enqueued)
	}
}
