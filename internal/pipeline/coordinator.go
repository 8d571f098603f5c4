package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/ai"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/dedupe"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/provider"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/utils"
)

const (
	defaultTopN          = 10
	defaultSearchLimit   = 50
	defaultQueryDelay    = 500 * time.Millisecond
	rationaleConcurrency = 4

	// fallbackRationale substitutes for a failed per-job rationale call.
	fallbackRationale = "Closely matches the roles and preferences you asked for."
)

// RunStore is the persistence surface the coordinator needs.
type RunStore interface {
	GetRun(ctx context.Context, id uuid.UUID) (*matching.JobMatchRun, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	MarkEmailed(ctx context.Context, id uuid.UUID, jobsFound int) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
	SaveResults(ctx context.Context, runID uuid.UUID, jobs []matching.ScoredJobItem) error
}

// TextExtractor turns an uploaded resume file into plain text.
type TextExtractor interface {
	ExtractText(path string) (string, error)
}

// Ranker orders normalized jobs for the candidate.
type Ranker interface {
	Rank(ctx context.Context, profile *matching.ParsedProfile, intent *matching.ExtractedIntent, jobs []matching.JobItem) ([]matching.ScoredJobItem, error)
}

// Dispatcher delivers the final digest.
type Dispatcher interface {
	Send(ctx context.Context, to string, jobs []matching.ScoredJobItem, intentText string) error
}

// Coordinator executes the stages of one run strictly in order and persists
// the run's lifecycle around them.
type Coordinator struct {
	store      RunStore
	resumes    TextExtractor
	extractor  ai.Extractor
	rationales ai.RationaleWriter
	ranker     Ranker
	providers  []provider.JobProvider
	dispatcher Dispatcher
	logger     *zap.Logger

	topN        int
	searchLimit int
	queryDelay  time.Duration
}

// Options tunes coordinator behavior. Zero values select the defaults.
type Options struct {
	TopN        int
	SearchLimit int
	QueryDelay  time.Duration
}

func NewCoordinator(
	store RunStore,
	resumes TextExtractor,
	extractor ai.Extractor,
	rationales ai.RationaleWriter,
	ranker Ranker,
	providers []provider.JobProvider,
	dispatcher Dispatcher,
	logger *zap.Logger,
	opts Options,
) *Coordinator {
	if opts.TopN <= 0 {
		opts.TopN = defaultTopN
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaultSearchLimit
	}
	if opts.QueryDelay <= 0 {
		opts.QueryDelay = defaultQueryDelay
	}

	return &Coordinator{
		store:       store,
		resumes:     resumes,
		extractor:   extractor,
		rationales:  rationales,
		ranker:      ranker,
		providers:   providers,
		dispatcher:  dispatcher,
		logger:      logger,
		topN:        opts.TopN,
		searchLimit: opts.SearchLimit,
		queryDelay:  opts.QueryDelay,
	}
}

type stage struct {
	name string
	fn   func(ctx context.Context, state State) (State, error)
}

func (c *Coordinator) stages() []stage {
	return []stage{
		{"ingest resume", c.ingestResume},
		{"extract profile", c.extractProfile},
		{"extract intent", c.extractIntent},
		{"build queries", c.buildQueries},
		{"aggregate providers", c.aggregateProviders},
		{"normalize and dedupe", c.normalizeDedupe},
		{"rank", c.rank},
		{"generate rationale", c.generateRationale},
		{"persist results", c.persistResults},
		{"deliver", c.deliver},
	}
}

// Run executes the pipeline for one queued run. Processing a run that is not
// queued is a no-op. A stage error aborts the remaining stages, is persisted
// best-effort as the terminal error state, and is returned to the caller.
func (c *Coordinator) Run(ctx context.Context, runID uuid.UUID) error {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}

	logger := c.logger.With(zap.String("run_id", run.ID.String()), zap.String("user_id", run.UserID))

	if run.Status != matching.RunQueued {
		logger.Info("skipping run not in queued state",
			zap.String("status", string(run.Status)),
			zap.Bool("terminal", matching.IsTerminal(run.Status)))
		return nil
	}

	if err := c.store.MarkRunning(ctx, run.ID); err != nil {
		// A concurrent worker won the race for this run.
		logger.Warn("could not claim run", zap.Error(err))
		return nil
	}
	run.Status = matching.RunRunning

	state := newState(run)
	started := time.Now()

	for _, st := range c.stages() {
		stageStart := time.Now()

		state, err = st.fn(ctx, state)
		if err != nil {
			logger.Error("pipeline stage failed",
				zap.String("stage", st.name),
				zap.Error(err),
			)
			c.persistFailure(ctx, logger, run.ID, st.name, err)
			return fmt.Errorf("stage %q: %w", st.name, err)
		}

		state.Metadata.StageCompletedAt[st.name] = time.Now()
		logger.Debug("pipeline stage completed",
			zap.String("stage", st.name),
			zap.Duration("took", time.Since(stageStart)),
		)
	}

	if err := c.store.MarkEmailed(ctx, run.ID, len(state.TopJobs)); err != nil {
		// The email is already out; the status write is best-effort like
		// every other persistence failure.
		logger.Error("failed to persist terminal emailed state", zap.Error(err))
		state.addIssue(fmt.Sprintf("persist run outcome: %v", err))
	}

	logger.Info("run completed",
		zap.Int("jobs_found", len(state.TopJobs)),
		zap.Int("jobs_considered", len(state.JobsNormalized)),
		zap.Strings("issues", state.Metadata.Errors),
		zap.Duration("took", time.Since(started)),
	)

	return nil
}

// persistFailure records the terminal error state. Its own persistence
// failure is logged and swallowed so it never masks the pipeline error.
func (c *Coordinator) persistFailure(ctx context.Context, logger *zap.Logger, runID uuid.UUID, stageName string, cause error) {
	message := fmt.Sprintf("%s: %v", stageName, cause)
	if err := c.store.MarkError(ctx, runID, message); err != nil {
		logger.Error("failed to persist terminal error state", zap.Error(err))
	}
}

func (c *Coordinator) ingestResume(_ context.Context, state State) (State, error) {
	text, err := c.resumes.ExtractText(state.Run.ResumePath)
	if err != nil {
		return state, err
	}

	state.ResumeText = text
	return state, nil
}

func (c *Coordinator) extractProfile(ctx context.Context, state State) (State, error) {
	profile, err := c.extractor.ExtractProfile(ctx, state.ResumeText)
	if err != nil {
		return state, err
	}

	state.Profile = profile
	return state, nil
}

func (c *Coordinator) extractIntent(ctx context.Context, state State) (State, error) {
	intent, err := c.extractor.ExtractIntent(ctx, state.Run.IntentText)
	if err != nil {
		return state, err
	}

	if len(intent.Locations) == 0 {
		intent.Locations = append([]string{}, matching.DefaultLocations...)
	}

	state.Intent = intent
	return state, nil
}

func (c *Coordinator) buildQueries(_ context.Context, state State) (State, error) {
	queries, err := matching.BuildQueries(state.Profile, state.Intent)
	if err != nil {
		return state, err
	}

	state.Queries = queries
	return state, nil
}

// aggregateProviders fans out across providers concurrently; within one
// provider, queries run sequentially with a politeness delay. A failed query
// is recorded and skipped, it never aborts the stage.
func (c *Coordinator) aggregateProviders(ctx context.Context, state State) (State, error) {
	type providerResult struct {
		name string
		jobs []matching.JobItem
	}

	// Indexed per provider so goroutines never share an element.
	results := make([]providerResult, len(c.providers))
	issues := make([][]string, len(c.providers))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, p := range c.providers {
		group.Go(func() error {
			var collected []matching.JobItem
			for qi, query := range state.Queries {
				if qi > 0 {
					if err := utils.WaitFor(groupCtx, c.queryDelay); err != nil {
						return err
					}
				}

				jobs, err := p.Search(groupCtx, query, c.searchLimit)
				if err != nil {
					issues[i] = append(issues[i], fmt.Sprintf("provider %s query %q: %v", p.Name(), query.Text, err))
					continue
				}
				collected = append(collected, jobs...)
			}

			results[i] = providerResult{name: p.Name(), jobs: collected}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return state, err
	}

	for i, res := range results {
		for _, issue := range issues[i] {
			state.addIssue(issue)
		}
		state.Metadata.ProviderFlags[res.name] = len(res.jobs) > 0
		state.JobsRaw = append(state.JobsRaw, res.jobs...)
	}

	return state, nil
}

func (c *Coordinator) normalizeDedupe(_ context.Context, state State) (State, error) {
	state.JobsNormalized = dedupe.Dedupe(dedupe.Normalize(state.JobsRaw))
	return state, nil
}

func (c *Coordinator) rank(ctx context.Context, state State) (State, error) {
	ranked, err := c.ranker.Rank(ctx, state.Profile, state.Intent, state.JobsNormalized)
	if err != nil {
		return state, err
	}

	state.JobsRanked = ranked
	if len(ranked) > c.topN {
		state.TopJobs = append([]matching.ScoredJobItem{}, ranked[:c.topN]...)
	} else {
		state.TopJobs = append([]matching.ScoredJobItem{}, ranked...)
	}

	return state, nil
}

// generateRationale asks for a per-job explanation in parallel. A failed call
// degrades to a generic line rather than failing the batch.
func (c *Coordinator) generateRationale(ctx context.Context, state State) (State, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(rationaleConcurrency)

	for i := range state.TopJobs {
		group.Go(func() error {
			rationale, err := c.rationales.Rationale(groupCtx, state.Profile, state.TopJobs[i].JobItem)
			if err != nil || rationale == "" {
				c.logger.Warn("rationale generation failed, using fallback",
					zap.String("title", state.TopJobs[i].Title),
					zap.Error(err),
				)
				rationale = fallbackRationale
			}
			state.TopJobs[i].Rationale = rationale
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return state, err
	}

	return state, nil
}

// persistResults writes the digest rows before delivery so results stay
// queryable even if the send fails. A write failure is non-fatal.
func (c *Coordinator) persistResults(ctx context.Context, state State) (State, error) {
	if err := c.store.SaveResults(ctx, state.Run.ID, state.TopJobs); err != nil {
		c.logger.Error("failed to persist result rows", zap.Error(err))
		state.addIssue(fmt.Sprintf("persist results: %v", err))
	}
	return state, nil
}

func (c *Coordinator) deliver(ctx context.Context, state State) (State, error) {
	if err := c.dispatcher.Send(ctx, state.Run.Email, state.TopJobs, state.Run.IntentText); err != nil {
		return state, err
	}
	return state, nil
}
