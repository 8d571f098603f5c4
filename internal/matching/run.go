// Run lifecycle state machine.
//
// Valid status graph:
//
//	queued ──► running ──► emailed
//	                └────► error
//
// emailed and error are terminal states; a terminal run is never re-entered.
package matching

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus mirrors the status column of job_match_runs.
type RunStatus string

const (
	RunQueued  RunStatus = "queued"
	RunRunning RunStatus = "running"
	RunEmailed RunStatus = "emailed"
	RunError   RunStatus = "error"
)

// validRunTransitions lists every allowed from/to pair.
var validRunTransitions = map[RunStatus][]RunStatus{
	RunQueued:  {RunRunning},
	RunRunning: {RunEmailed, RunError},
	// emailed and error are terminal and have no outgoing transitions
}

// ParseRunStatus converts a raw string to a RunStatus, returning an error for
// unknown values.
func ParseRunStatus(s string) (RunStatus, error) {
	st := RunStatus(s)
	switch st {
	case RunQueued, RunRunning, RunEmailed, RunError:
		return st, nil
	}
	return "", fmt.Errorf("unknown run status %q", s)
}

// IsTransitionAllowed returns true when the from/to pair is permitted by the
// state machine.
func IsTransitionAllowed(from, to RunStatus) bool {
	allowed, ok := validRunTransitions[from]
	if !ok {
		return false // terminal state
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a run in this status can still make progress.
func IsTerminal(s RunStatus) bool {
	_, ok := validRunTransitions[s]
	return !ok
}

// JobMatchRun is the persisted record of one pipeline execution.
type JobMatchRun struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	IntentText  string    `json:"intent_text"`
	Preferences string    `json:"preferences,omitempty"`
	ResumePath  string    `json:"resume_path"`
	Email       string    `json:"email"`
	Status      RunStatus `json:"status"`
	JobsFound   int       `json:"jobs_found"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
