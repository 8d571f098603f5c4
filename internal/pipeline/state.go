// Package pipeline sequences the job matching stages over one run and owns
// the run's persisted lifecycle.
package pipeline

import (
	"time"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

// State is the ephemeral value threaded through the stages of one run. Each
// stage receives a copy and returns a derived copy; nothing in here is shared
// across runs.
type State struct {
	Run *matching.JobMatchRun

	ResumeText string
	Profile    *matching.ParsedProfile
	Intent     *matching.ExtractedIntent
	Queries    []matching.Query

	JobsRaw        []matching.JobItem
	JobsNormalized []matching.JobItem
	JobsRanked     []matching.ScoredJobItem
	TopJobs        []matching.ScoredJobItem

	Metadata Metadata
}

// Metadata accumulates non-fatal diagnostics for one run.
type Metadata struct {
	// Errors collects issues that degraded but did not abort the run.
	Errors []string
	// StageCompletedAt records when each stage finished.
	StageCompletedAt map[string]time.Time
	// ProviderFlags records which providers contributed results.
	ProviderFlags map[string]bool
}

func newState(run *matching.JobMatchRun) State {
	return State{
		Run: run,
		Metadata: Metadata{
			StageCompletedAt: make(map[string]time.Time),
			ProviderFlags:    make(map[string]bool),
		},
	}
}

func (s *State) addIssue(issue string) {
	s.Metadata.Errors = append(s.Metadata.Errors, issue)
}
