// Package ranking scores normalized jobs against the candidate profile and
// intent with a weighted blend of embedding similarity and heuristics.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/ai"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

const (
	defaultEmbedConcurrency = 4
	maxDescriptionRunes     = 512
)

// Weights controls how the individual signals blend into one score.
type Weights struct {
	Semantic  float64 `mapstructure:"semantic"`
	Skill     float64 `mapstructure:"skill"`
	Recency   float64 `mapstructure:"recency"`
	Seniority float64 `mapstructure:"seniority"`
	Location  float64 `mapstructure:"location"`
}

// DefaultWeights is the north-star distribution used unless overridden.
func DefaultWeights() Weights {
	return Weights{
		Semantic:  0.5,
		Skill:     0.2,
		Recency:   0.15,
		Seniority: 0.1,
		Location:  0.05,
	}
}

// seniorityKeywords maps a candidate seniority bucket to the title tokens
// that count as a match.
var seniorityKeywords = map[matching.Seniority][]string{
	matching.SeniorityEntry:     {"junior", "entry", "associate", "intern", "graduate"},
	matching.SeniorityMid:       {"mid", "ii", "2"},
	matching.SenioritySenior:    {"senior", "lead", "principal"},
	matching.SeniorityLead:      {"lead", "principal", "staff", "head"},
	matching.SeniorityExecutive: {"director", "vp", "vice president", "chief", "head of"},
}

// Ranker orders jobs for a candidate.
type Ranker struct {
	embedder    ai.Embedder
	logger      *zap.Logger
	weights     Weights
	concurrency int
	now         func() time.Time
}

func NewRanker(embedder ai.Embedder, logger *zap.Logger, weights Weights) *Ranker {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}

	return &Ranker{
		embedder:    embedder,
		logger:      logger,
		weights:     weights,
		concurrency: defaultEmbedConcurrency,
		now:         time.Now,
	}
}

// Rank scores every job and returns them sorted by descending score. Ties
// keep their input order. A failed per-job embedding zeroes that job's
// semantic signal instead of failing the whole batch.
func (r *Ranker) Rank(ctx context.Context, profile *matching.ParsedProfile, intent *matching.ExtractedIntent, jobs []matching.JobItem) ([]matching.ScoredJobItem, error) {
	if profile == nil || intent == nil {
		return nil, fmt.Errorf("profile and intent are required for ranking")
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	candidateVector, err := r.embedder.Embed(ctx, candidateSummary(profile, intent))
	if err != nil {
		return nil, fmt.Errorf("embed candidate summary: %w", err)
	}

	// Each goroutine writes only its own index, so no lock is needed.
	jobVectors := make([][]float64, len(jobs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)

	for i, job := range jobs {
		group.Go(func() error {
			vector, err := r.embedder.Embed(groupCtx, jobSummary(job))
			if err != nil {
				r.logger.Warn("job embedding failed, semantic signal zeroed",
					zap.String("title", job.Title),
					zap.String("company", job.Company),
					zap.Error(err),
				)
				return nil
			}

			jobVectors[i] = vector
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	preferred := intent.Locations
	if len(preferred) == 0 {
		preferred = matching.DefaultLocations
	}

	now := r.now()
	scored := make([]matching.ScoredJobItem, len(jobs))
	for i, job := range jobs {
		breakdown := matching.ScoreBreakdown{
			Semantic:  cosineSimilarity(candidateVector, jobVectors[i]),
			Skill:     skillScore(profile.Skills, job.DescriptionSnippet),
			Recency:   recencyScore(job.PostedAt, now),
			Seniority: seniorityScore(profile.Seniority, job.Title),
			Location:  locationScore(job.Location, preferred),
		}

		score := breakdown.Semantic*r.weights.Semantic +
			breakdown.Skill*r.weights.Skill +
			breakdown.Recency*r.weights.Recency +
			breakdown.Seniority*r.weights.Seniority +
			breakdown.Location*r.weights.Location

		scored[i] = matching.ScoredJobItem{
			JobItem:   job,
			Score:     clamp01(score),
			Breakdown: breakdown,
		}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	return scored, nil
}

func candidateSummary(profile *matching.ParsedProfile, intent *matching.ExtractedIntent) string {
	parts := make([]string, 0, 4)
	if len(intent.Roles) > 0 {
		parts = append(parts, strings.Join(intent.Roles, ", "))
	}
	if len(profile.Titles) > 0 {
		parts = append(parts, strings.Join(profile.Titles, ", "))
	}
	if len(profile.Skills) > 0 {
		parts = append(parts, strings.Join(profile.Skills, ", "))
	}
	industries := append(append([]string{}, profile.Industries...), intent.Industries...)
	if len(industries) > 0 {
		parts = append(parts, strings.Join(industries, ", "))
	}
	return strings.Join(parts, ". ")
}

func jobSummary(job matching.JobItem) string {
	description := job.DescriptionSnippet
	if runes := []rune(description); len(runes) > maxDescriptionRunes {
		description = string(runes[:maxDescriptionRunes])
	}
	return strings.TrimSpace(job.Title + ". " + job.Company + ". " + description)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func skillScore(skills []string, description string) float64 {
	if len(skills) == 0 || strings.TrimSpace(description) == "" {
		return 0
	}

	haystack := strings.ToLower(description)
	matched := 0
	for _, skill := range skills {
		if skill = strings.ToLower(strings.TrimSpace(skill)); skill == "" {
			continue
		}
		if strings.Contains(haystack, skill) {
			matched++
		}
	}

	return float64(matched) / float64(len(skills))
}

func recencyScore(postedAt *time.Time, now time.Time) float64 {
	if postedAt == nil || postedAt.IsZero() {
		return 0.5
	}

	age := now.Sub(*postedAt)
	switch {
	case age <= 7*24*time.Hour:
		return 1.0
	case age <= 14*24*time.Hour:
		return 0.9
	case age <= 30*24*time.Hour:
		return 0.7
	case age <= 60*24*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

func seniorityScore(seniority matching.Seniority, title string) float64 {
	keywords, ok := seniorityKeywords[seniority]
	if !ok {
		return 0.5
	}

	lower := strings.ToLower(title)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return 1.0
		}
	}

	return 0.5
}

func locationScore(location string, preferred []string) float64 {
	if strings.TrimSpace(location) == "" {
		return 0.5
	}

	lower := strings.ToLower(location)
	for _, want := range preferred {
		if want = strings.ToLower(strings.TrimSpace(want)); want == "" {
			continue
		}
		if strings.Contains(lower, want) {
			return 1.0
		}
	}

	return 0.3
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
