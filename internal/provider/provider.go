// Package provider defines the contract every job-search backend implements.
package provider

import (
	"context"
	"sync"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

// TestResult reports a connectivity probe against a provider.
type TestResult struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

// Status reports a provider's current health without touching the network.
type Status struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}

// JobProvider is a pluggable source of job postings. Search failures inside a
// provider must not fail the overall run; implementations either return a
// typed error the aggregation stage records as non-fatal, or absorb errors
// and return an empty slice.
type JobProvider interface {
	Name() string
	Search(ctx context.Context, query matching.Query, limit int) ([]matching.JobItem, error)
	Test(ctx context.Context) TestResult
	GetStatus() Status
}

// Stats tracks request outcomes for one provider instance. An instance is
// scoped per stored credential, so concurrent runs sharing a credential also
// share its failure budget.
type Stats struct {
	mu sync.Mutex

	Requests            int    `json:"requests"`
	Successes           int    `json:"successes"`
	Failures            int    `json:"failures"`
	BlockedCount        int    `json:"blocked_count"`
	LastError           string `json:"last_error,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Blocked             bool   `json:"blocked"`
}

// RecordSuccess counts a successful request and clears the consecutive
// failure streak.
func (s *Stats) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests++
	s.Successes++
	s.ConsecutiveFailures = 0
}

// RecordFailure counts a failed request and returns the updated streak.
func (s *Stats) RecordFailure(err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests++
	s.Failures++
	s.ConsecutiveFailures++
	if err != nil {
		s.LastError = err.Error()
	}
	return s.ConsecutiveFailures
}

// MarkBlocked latches the blocked flag. It stays set until Reset.
func (s *Stats) MarkBlocked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BlockedCount++
	s.Blocked = true
}

// IsBlocked reports the sticky blocked flag.
func (s *Stats) IsBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Blocked
}

// Reset clears the blocked flag and failure streak. Counters are kept; they
// describe the instance's lifetime, not the current session.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Blocked = false
	s.ConsecutiveFailures = 0
	s.LastError = ""
}

// Snapshot returns a copy safe to log or serialize.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Requests:            s.Requests,
		Successes:           s.Successes,
		Failures:            s.Failures,
		BlockedCount:        s.BlockedCount,
		LastError:           s.LastError,
		ConsecutiveFailures: s.ConsecutiveFailures,
		Blocked:             s.Blocked,
	}
}
