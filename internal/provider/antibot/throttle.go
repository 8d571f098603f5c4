package antibot

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/utils"
)

// Throttle paces requests so they never fire faster than a randomized
// minimum gap, and never on a perfectly periodic schedule. Both properties
// matter: the first bounds request rate, the second avoids the fixed-interval
// timing fingerprint automated clients tend to have.
type Throttle struct {
	// MinGap and MaxGap bound the randomized required gap between requests.
	MinGap time.Duration
	MaxGap time.Duration
	// Jitter is added on top of the remainder when a request arrives early.
	Jitter time.Duration
	// MicroMin and MicroMax bound the small delay applied even when enough
	// time has already passed.
	MicroMin time.Duration
	MicroMax time.Duration

	mu       sync.Mutex
	lastSeen time.Time
	now      func() time.Time
	rand     *rand.Rand
}

// NewThrottle returns a throttle with the gap ranges used against scraping
// targets: 2-4s between requests with up to 1s of extra jitter, and a
// 100-500ms micro-delay otherwise.
func NewThrottle() *Throttle {
	return &Throttle{
		MinGap:   2 * time.Second,
		MaxGap:   4 * time.Second,
		Jitter:   time.Second,
		MicroMin: 100 * time.Millisecond,
		MicroMax: 500 * time.Millisecond,
		now:      time.Now,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until the next request is allowed to start. The last-request
// bookkeeping is updated together with the sleep decision, under the same
// lock, so concurrent callers cannot both observe an elapsed gap and burst.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()

	now := t.now()
	gap := t.MinGap + time.Duration(t.rand.Int63n(int64(t.MaxGap-t.MinGap)+1))

	var sleep time.Duration
	if elapsed := now.Sub(t.lastSeen); elapsed < gap {
		sleep = gap - elapsed + time.Duration(t.rand.Int63n(int64(t.Jitter)+1))
	} else {
		sleep = t.MicroMin + time.Duration(t.rand.Int63n(int64(t.MicroMax-t.MicroMin)+1))
	}

	t.lastSeen = now.Add(sleep)
	t.mu.Unlock()

	return utils.WaitFor(ctx, sleep)
}

// randomPause sleeps for a uniformly random duration in [min, max]. Used for
// the warmup sequence's human-looking think time.
func (t *Throttle) randomPause(ctx context.Context, min, max time.Duration) error {
	t.mu.Lock()
	d := min + time.Duration(t.rand.Int63n(int64(max-min)+1))
	t.mu.Unlock()
	return utils.WaitFor(ctx, d)
}
