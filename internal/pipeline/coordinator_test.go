package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/ai"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/provider"
)

type memStore struct {
	mu      sync.Mutex
	runs    map[uuid.UUID]*matching.JobMatchRun
	results map[uuid.UUID][]matching.ScoredJobItem

	failMarkError   bool
	failMarkEmailed bool
}

func newMemStore(run *matching.JobMatchRun) *memStore {
	return &memStore{
		runs:    map[uuid.UUID]*matching.JobMatchRun{run.ID: run},
		results: map[uuid.UUID][]matching.ScoredJobItem{},
	}
}

func (m *memStore) GetRun(_ context.Context, id uuid.UUID) (*matching.JobMatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, errors.New("run not found")
	}
	copied := *run
	return &copied, nil
}

func (m *memStore) transition(id uuid.UUID, to matching.RunStatus) error {
	run, ok := m.runs[id]
	if !ok {
		return errors.New("run not found")
	}
	if !matching.IsTransitionAllowed(run.Status, to) {
		return fmt.Errorf("invalid transition %s -> %s", run.Status, to)
	}
	run.Status = to
	return nil
}

func (m *memStore) MarkRunning(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(id, matching.RunRunning)
}

func (m *memStore) MarkEmailed(_ context.Context, id uuid.UUID, jobsFound int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMarkEmailed {
		return errors.New("database unavailable")
	}
	if err := m.transition(id, matching.RunEmailed); err != nil {
		return err
	}
	m.runs[id].JobsFound = jobsFound
	return nil
}

func (m *memStore) MarkError(_ context.Context, id uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMarkError {
		return errors.New("database unavailable")
	}
	if err := m.transition(id, matching.RunError); err != nil {
		return err
	}
	m.runs[id].Error = message
	return nil
}

func (m *memStore) SaveResults(_ context.Context, runID uuid.UUID, jobs []matching.ScoredJobItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[runID] = append([]matching.ScoredJobItem{}, jobs...)
	return nil
}

func (m *memStore) status(id uuid.UUID) matching.RunStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id].Status
}

type stubResume struct {
	text string
	err  error
}

func (s *stubResume) ExtractText(string) (string, error) { return s.text, s.err }

type stubExtractor struct {
	profile *matching.ParsedProfile
	intent  *matching.ExtractedIntent
	err     error
}

func (s *stubExtractor) ExtractProfile(context.Context, string) (*matching.ParsedProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

func (s *stubExtractor) ExtractIntent(context.Context, string) (*matching.ExtractedIntent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.intent, nil
}

type stubRationale struct {
	failFor string
}

func (s *stubRationale) Rationale(_ context.Context, _ *matching.ParsedProfile, job matching.JobItem) (string, error) {
	if s.failFor != "" && job.Title == s.failFor {
		return "", errors.New("model overloaded")
	}
	return "Strong match for " + job.Title + ".", nil
}

type stubRanker struct{ err error }

func (s *stubRanker) Rank(_ context.Context, _ *matching.ParsedProfile, _ *matching.ExtractedIntent, jobs []matching.JobItem) ([]matching.ScoredJobItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	scored := make([]matching.ScoredJobItem, len(jobs))
	for i, job := range jobs {
		scored[i] = matching.ScoredJobItem{JobItem: job, Score: 1 - float64(i)*0.01}
	}
	return scored, nil
}

type stubProvider struct {
	mu           sync.Mutex
	name         string
	jobs         []matching.JobItem
	failLocation string
	searches     int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(_ context.Context, query matching.Query, _ int) ([]matching.JobItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++
	if s.failLocation != "" && query.Location == s.failLocation {
		return nil, errors.New("upstream 502")
	}
	return s.jobs, nil
}

func (s *stubProvider) Test(context.Context) provider.TestResult {
	return provider.TestResult{Available: true}
}

func (s *stubProvider) GetStatus() provider.Status {
	return provider.Status{Healthy: true}
}

func (s *stubProvider) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

type stubDispatcher struct {
	mu   sync.Mutex
	sent []matching.ScoredJobItem
	err  error

	// onSend observes store state at delivery time.
	onSend func()
}

func (s *stubDispatcher) Send(_ context.Context, _ string, jobs []matching.ScoredJobItem, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onSend != nil {
		s.onSend()
	}
	if s.err != nil {
		return s.err
	}
	s.sent = append([]matching.ScoredJobItem{}, jobs...)
	return nil
}

func queuedRun() *matching.JobMatchRun {
	now := time.Now()
	return &matching.JobMatchRun{
		ID:         uuid.New(),
		UserID:     "user-1",
		IntentText: "senior product roles at fintech startups",
		ResumePath: "/tmp/resume.txt",
		Email:      "candidate@example.com",
		Status:     matching.RunQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func testProfile() *matching.ParsedProfile {
	return &matching.ParsedProfile{
		Titles: []string{"Product Manager"},
		Skills: []string{"roadmaps", "sql"},
	}
}

func testIntent() *matching.ExtractedIntent {
	return &matching.ExtractedIntent{
		Roles:         []string{"Product Manager"},
		Locations:     []string{"Bangalore"},
		RecencyWindow: matching.RecencyMonth,
	}
}

func newTestCoordinator(store RunStore, providers []provider.JobProvider, dispatcher Dispatcher, extractor *stubExtractor, rationales ai.RationaleWriter, ranker Ranker) *Coordinator {
	return NewCoordinator(
		store,
		&stubResume{text: "resume body"},
		extractor,
		rationales,
		ranker,
		providers,
		dispatcher,
		zap.NewNop(),
		Options{TopN: 3, QueryDelay: time.Millisecond},
	)
}

func TestRunSuccessPath(t *testing.T) {
	t.Parallel()

	run := queuedRun()
	store := newMemStore(run)

	jobs := []matching.JobItem{
		{Title: "Senior PM", Company: "Acme", ApplyURL: "https://a.example/jobs/1"},
		{Title: "PM II", Company: "Beta", ApplyURL: "https://b.example/jobs/2"},
	}
	prov := &stubProvider{name: "aggregator", jobs: jobs}
	dispatcher := &stubDispatcher{}

	coordinator := newTestCoordinator(store, []provider.JobProvider{prov}, dispatcher,
		&stubExtractor{profile: testProfile(), intent: testIntent()}, &stubRationale{}, &stubRanker{})

	if err := coordinator.Run(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.status(run.ID); got != matching.RunEmailed {
		t.Fatalf("expected emailed, got %s", got)
	}
	if store.runs[run.ID].JobsFound != len(dispatcher.sent) {
		t.Fatalf("jobsFound %d does not match delivered %d", store.runs[run.ID].JobsFound, len(dispatcher.sent))
	}
	if len(dispatcher.sent) == 0 {
		t.Fatal("expected delivered jobs")
	}
	for _, job := range dispatcher.sent {
		if job.Rationale == "" {
			t.Fatalf("job %q delivered without rationale", job.Title)
		}
	}
}

func TestRunPersistsResultsBeforeDelivery(t *testing.T) {
	t.Parallel()

	run := queuedRun()
	store := newMemStore(run)

	prov := &stubProvider{name: "aggregator", jobs: []matching.JobItem{
		{Title: "Senior PM", Company: "Acme", ApplyURL: "https://a.example/jobs/1"},
	}}

	var resultsAtSend int
	dispatcher := &stubDispatcher{}
	dispatcher.onSend = func() {
		store.mu.Lock()
		resultsAtSend = len(store.results[run.ID])
		store.mu.Unlock()
	}

	coordinator := newTestCoordinator(store, []provider.JobProvider{prov}, dispatcher,
		&stubExtractor{profile: testProfile(), intent: testIntent()}, &stubRationale{}, &stubRanker{})

	if err := coordinator.Run(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resultsAtSend == 0 {
		t.Fatal("expected result rows persisted before delivery")
	}
}

func TestRunFatalStageMarksError(t *testing.T) {
	t.Parallel()

	run := queuedRun()
	store := newMemStore(run)
	prov := &stubProvider{name: "aggregator"}
	dispatcher := &stubDispatcher{}

	coordinator := newTestCoordinator(store, []provider.JobProvider{prov}, dispatcher,
		&stubExtractor{err: errors.New("model returned prose")}, &stubRationale{}, &stubRanker{})

	err := coordinator.Run(context.Background(), run.ID)
	if err == nil {
		t.Fatal("expected stage error")
	}

	if got := store.status(run.ID); got != matching.RunError {
		t.Fatalf("expected error status, got %s", got)
	}
	if store.runs[run.ID].Error == "" {
		t.Fatal("expected persisted error message")
	}
	if len(dispatcher.sent) != 0 {
		t.Fatal("expected no delivery after fatal stage")
	}
	if prov.searchCount() != 0 {
		t.Fatal("expected no provider calls after fatal extraction")
	}
}

func TestRunPersistenceFailureDoesNotMaskStageError(t *testing.T) {
	t.Parallel()

	run := queuedRun()
	store := newMemStore(run)
	store.failMarkError = true

	coordinator := newTestCoordinator(store, nil, &stubDispatcher{},
		&stubExtractor{err: errors.New("model returned prose")}, &stubRationale{}, &stubRanker{})

	err := coordinator.Run(context.Background(), run.ID)
	if err == nil || !strings.Contains(err.Error(), "model returned prose") {
		t.Fatalf("expected original stage error, got %v", err)
	}
}

func TestRunSuccessPersistFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	run := queuedRun()
	store := newMemStore(run)
	store.failMarkEmailed = true

	prov := &stubProvider{name: "aggregator", jobs: []matching.JobItem{
		{Title: "Senior PM", Company: "Acme", ApplyURL: "https://a.example/jobs/1"},
	}}
	dispatcher := &stubDispatcher{}

	coordinator := newTestCoordinator(store, []provider.JobProvider{prov}, dispatcher,
		&stubExtractor{profile: testProfile(), intent: testIntent()}, &stubRationale{}, &stubRanker{})

	if err := coordinator.Run(context.Background(), run.ID); err != nil {
		t.Fatalf("run succeeded up to delivery, status write failure must not fail it: %v", err)
	}

	if len(dispatcher.sent) == 0 {
		t.Fatal("expected delivered jobs")
	}
	if got := store.status(run.ID); got == matching.RunError {
		t.Fatalf("run must not be marked failed after successful delivery, got %s", got)
	}
}

func TestRunSkipsNonQueuedRun(t *testing.T) {
	t.Parallel()

	run := queuedRun()
	run.Status = matching.RunEmailed
	store := newMemStore(run)
	prov := &stubProvider{name: "aggregator"}

	coordinator := newTestCoordinator(store, []provider.JobProvider{prov}, &stubDispatcher{},
		&stubExtractor{profile: testProfile(), intent: testIntent()}, &stubRationale{}, &stubRanker{})

	if err := coordinator.Run(context.Background(), run.ID); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if got := store.status(run.ID); got != matching.RunEmailed {
		t.Fatalf("terminal status changed to %s", got)
	}
	if prov.searchCount() != 0 {
		t.Fatal("expected no provider calls for terminal run")
	}
}

func TestRunToleratesPerQueryProviderFailure(t *testing.T) {
	t.Parallel()

	run := queuedRun()
	store := newMemStore(run)

	// The Bangalore query fails; the India fallback query still returns
	// results.
	prov := &stubProvider{
		name:         "aggregator",
		failLocation: "Bangalore",
		jobs:         []matching.JobItem{{Title: "PM", Company: "Acme", ApplyURL: "https://a.example/jobs/1"}},
	}
	dispatcher := &stubDispatcher{}

	coordinator := newTestCoordinator(store, []provider.JobProvider{prov}, dispatcher,
		&stubExtractor{profile: testProfile(), intent: testIntent()}, &stubRationale{}, &stubRanker{})

	if err := coordinator.Run(context.Background(), run.ID); err != nil {
		t.Fatalf("expected per-query failure to be non-fatal, got %v", err)
	}
	if got := store.status(run.ID); got != matching.RunEmailed {
		t.Fatalf("expected emailed, got %s", got)
	}
	if len(dispatcher.sent) != 1 {
		t.Fatalf("expected 1 job from fallback query, got %d", len(dispatcher.sent))
	}
}

func TestRunDeduplicatesAcrossProviders(t *testing.T) {
	t.Parallel()

	run := queuedRun()
	store := newMemStore(run)

	shared := "https://jobs.example/jobs/123"
	provA := &stubProvider{name: "aggregator", jobs: []matching.JobItem{
		{Title: "Senior PM", Company: "Acme", ApplyURL: shared + "?utm=x"},
	}}
	provB := &stubProvider{name: "linkedin", jobs: []matching.JobItem{
		{Title: "Senior PM", Company: "Acme", ApplyURL: shared},
	}}
	dispatcher := &stubDispatcher{}

	coordinator := newTestCoordinator(store, []provider.JobProvider{provA, provB}, dispatcher,
		&stubExtractor{profile: testProfile(), intent: testIntent()}, &stubRationale{}, &stubRanker{})

	if err := coordinator.Run(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dispatcher.sent) != 1 {
		t.Fatalf("expected 1 deduplicated job, got %d", len(dispatcher.sent))
	}
}

func TestRunRationaleFallback(t *testing.T) {
	t.Parallel()

	run := queuedRun()
	store := newMemStore(run)

	prov := &stubProvider{name: "aggregator", jobs: []matching.JobItem{
		{Title: "Flaky Role", Company: "Acme", ApplyURL: "https://a.example/jobs/1"},
		{Title: "Solid Role", Company: "Beta", ApplyURL: "https://b.example/jobs/2"},
	}}
	dispatcher := &stubDispatcher{}

	coordinator := newTestCoordinator(store, []provider.JobProvider{prov}, dispatcher,
		&stubExtractor{profile: testProfile(), intent: testIntent()}, &stubRationale{failFor: "Flaky Role"}, &stubRanker{})

	if err := coordinator.Run(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, job := range dispatcher.sent {
		switch job.Title {
		case "Flaky Role":
			if job.Rationale != fallbackRationale {
				t.Fatalf("expected fallback rationale, got %q", job.Rationale)
			}
		case "Solid Role":
			if job.Rationale == fallbackRationale {
				t.Fatal("expected real rationale for healthy job")
			}
		}
	}
}

func TestRunDeliveryFailureMarksErrorButKeepsResults(t *testing.T) {
	t.Parallel()

	run := queuedRun()
	store := newMemStore(run)

	prov := &stubProvider{name: "aggregator", jobs: []matching.JobItem{
		{Title: "Senior PM", Company: "Acme", ApplyURL: "https://a.example/jobs/1"},
	}}
	dispatcher := &stubDispatcher{err: errors.New("smtp connection refused")}

	coordinator := newTestCoordinator(store, []provider.JobProvider{prov}, dispatcher,
		&stubExtractor{profile: testProfile(), intent: testIntent()}, &stubRationale{}, &stubRanker{})

	if err := coordinator.Run(context.Background(), run.ID); err == nil {
		t.Fatal("expected delivery error")
	}

	if got := store.status(run.ID); got != matching.RunError {
		t.Fatalf("expected error status, got %s", got)
	}
	if len(store.results[run.ID]) == 0 {
		t.Fatal("expected results to remain queryable after delivery failure")
	}
}
