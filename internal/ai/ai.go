// Package ai declares the LLM collaborator contracts the pipeline depends
// on. Implementations live in subpackages; stages only see these interfaces.
package ai

import (
	"context"
	"errors"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

// ErrUnparsable indicates the model returned output that could not be
// decoded into the expected JSON shape. It is fatal for extraction calls.
var ErrUnparsable = errors.New("ai: model output is not parseable JSON")

// Extractor turns free text into structured candidate data.
type Extractor interface {
	// ExtractProfile parses resume text into a structured profile.
	ExtractProfile(ctx context.Context, resumeText string) (*matching.ParsedProfile, error)
	// ExtractIntent parses the candidate's stated intent.
	ExtractIntent(ctx context.Context, intentText string) (*matching.ExtractedIntent, error)
}

// RationaleWriter produces the short "why this fits" explanation for one job.
type RationaleWriter interface {
	Rationale(ctx context.Context, profile *matching.ParsedProfile, job matching.JobItem) (string, error)
}

// Embedder maps text into the vector space used for semantic ranking.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
