package antibot

// Circuit breaker for the scraping session.
//
// Valid state graph:
//
//	disabled                    (terminal: provider never configured)
//	ready ──► blocked           (threshold hit or explicit block signal)
//	blocked ──► ready           (manual Reset only)
//
// There is no automatic recovery from blocked. Retrying a flagged session is
// exactly what gets accounts banned, so a human has to decide to come back.

import (
	"errors"
	"sync"
)

// State is the breaker's position.
type State string

const (
	StateDisabled State = "disabled"
	StateReady    State = "ready"
	StateBlocked  State = "blocked"
)

// DefaultFailureThreshold is the number of consecutive failures that trips
// the breaker.
const DefaultFailureThreshold = 3

// ErrBlocked is the distinguished error raised when a response is classified
// as a bot-detection block.
var ErrBlocked = errors.New("antibot: target blocked the session")

// Breaker trips to blocked after a run of consecutive failures or a single
// explicit block signal, and stays blocked until manually reset.
type Breaker struct {
	threshold int

	mu    sync.Mutex
	state State
}

// NewBreaker returns a breaker in the given initial state. A non-positive
// threshold falls back to the default.
func NewBreaker(initial State, threshold int) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &Breaker{threshold: threshold, state: initial}
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// OnFailure records one failure with the current consecutive streak and trips
// the breaker when the streak reaches the threshold or the failure was an
// explicit block.
func (b *Breaker) OnFailure(consecutive int, explicitBlock bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateReady {
		return
	}
	if explicitBlock || consecutive >= b.threshold {
		b.state = StateBlocked
	}
}

// Reset returns a blocked breaker to ready. A disabled breaker stays
// disabled; there is no credential to resume with.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateBlocked {
		b.state = StateReady
	}
}
