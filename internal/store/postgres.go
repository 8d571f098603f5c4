// Package store persists job match runs and their result rows, and holds the
// Redis-backed work queue that feeds the pipeline worker.
package store

import (
	"context"
	"fmt"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = fmt.Errorf("job match run not found")

// ErrInvalidTransition is returned when a status update would violate the
// queued -> running -> {emailed|error} lifecycle.
var ErrInvalidTransition = fmt.Errorf("invalid run status transition")

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the run tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// NewRedisClient creates and verifies a Redis client connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return rdb, nil
}

// RunStore reads and writes job_match_runs and job_match_results.
type RunStore struct {
	pool *pgxpool.Pool
}

func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// CreateRun inserts a new run in the queued state.
func (s *RunStore) CreateRun(ctx context.Context, run *matching.JobMatchRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_match_runs
		   (id, user_id, intent_text, preferences, resume_path, email, status, jobs_found, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8)`,
		run.ID, run.UserID, run.IntentText, run.Preferences, run.ResumePath,
		run.Email, matching.RunQueued, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("createRun insert: %w", err)
	}
	return nil
}

// GetRun loads a run by id. Returns ErrRunNotFound if it does not exist.
func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (*matching.JobMatchRun, error) {
	var run matching.JobMatchRun
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, intent_text, preferences, resume_path, email,
		        status, jobs_found, COALESCE(error, ''), created_at, updated_at
		 FROM job_match_runs
		 WHERE id = $1`,
		id,
	).Scan(
		&run.ID, &run.UserID, &run.IntentText, &run.Preferences, &run.ResumePath,
		&run.Email, &status, &run.JobsFound, &run.Error,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("getRun query: %w", err)
	}

	run.Status, err = matching.ParseRunStatus(status)
	if err != nil {
		return nil, fmt.Errorf("getRun: %w", err)
	}
	return &run, nil
}

// MarkRunning moves a queued run into the running state.
func (s *RunStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, matching.RunQueued, matching.RunRunning,
		`UPDATE job_match_runs SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`)
}

// MarkEmailed records the successful terminal state and the match count.
func (s *RunStore) MarkEmailed(ctx context.Context, id uuid.UUID, jobsFound int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_match_runs SET status = $1, jobs_found = $2, updated_at = now()
		 WHERE id = $3 AND status = $4`,
		matching.RunEmailed, jobsFound, id, matching.RunRunning,
	)
	if err != nil {
		return fmt.Errorf("markEmailed update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkError records the failed terminal state with the fatal error message.
func (s *RunStore) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_match_runs SET status = $1, error = $2, updated_at = now()
		 WHERE id = $3 AND status = $4`,
		matching.RunError, message, id, matching.RunRunning,
	)
	if err != nil {
		return fmt.Errorf("markError update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (s *RunStore) transition(ctx context.Context, id uuid.UUID, from, to matching.RunStatus, query string) error {
	if !matching.IsTransitionAllowed(from, to) {
		return ErrInvalidTransition
	}

	tag, err := s.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("transition %s to %s: %w", from, to, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ListStrandedRuns returns ids of runs still queued after olderThan, oldest
// first. These are runs whose enqueue was lost or whose worker died.
func (s *RunStore) ListStrandedRuns(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM job_match_runs
		 WHERE status = $1 AND updated_at < now() - make_interval(secs => $2)
		 ORDER BY created_at ASC
		 LIMIT 100`,
		matching.RunQueued, olderThan.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("listStrandedRuns query: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("listStrandedRuns scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveResults writes one row per delivered job. Descriptions are dropped on
// purpose, only the digest fields are kept.
func (s *RunStore) SaveResults(ctx context.Context, runID uuid.UUID, jobs []matching.ScoredJobItem) error {
	if len(jobs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, job := range jobs {
		batch.Queue(
			`INSERT INTO job_match_results
			   (run_id, position, title, company, location, apply_url, score, rationale)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			runID, i+1, job.Title, job.Company, job.Location, job.ApplyURL, job.Score, job.Rationale,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range jobs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("saveResults insert: %w", err)
		}
	}
	return nil
}

// RunResult is one persisted row of a delivered digest.
type RunResult struct {
	Position  int     `json:"position"`
	Title     string  `json:"title"`
	Company   string  `json:"company"`
	Location  string  `json:"location,omitempty"`
	ApplyURL  string  `json:"apply_url"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale,omitempty"`
}

// ListResults returns a run's persisted result rows in delivery order.
func (s *RunStore) ListResults(ctx context.Context, runID uuid.UUID) ([]RunResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT position, title, company, COALESCE(location, ''), apply_url, score, COALESCE(rationale, '')
		 FROM job_match_results
		 WHERE run_id = $1
		 ORDER BY position ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listResults query: %w", err)
	}
	defer rows.Close()

	out := make([]RunResult, 0)
	for rows.Next() {
		var r RunResult
		if err := rows.Scan(&r.Position, &r.Title, &r.Company, &r.Location, &r.ApplyURL, &r.Score, &r.Rationale); err != nil {
			return nil, fmt.Errorf("listResults scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
