package gemini

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/ai"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestExtractProfileParsesFencedJSON(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: "```json\n{\n" +
		`  "skills": ["Go", "PostgreSQL", ""],` + "\n" +
		`  "titles": ["Backend Engineer"],` + "\n" +
		`  "years_of_experience": "7",` + "\n" +
		`  "industries": ["fintech"],` + "\n" +
		`  "seniority": "Senior",` + "\n" +
		`  "education": ["B.Tech"],` + "\n" +
		`  "achievements": ["cut p99 latency by 40%"]` + "\n}\n```"}

	extractor := NewExtractor(gen, zap.NewNop(), 0)

	profile, err := extractor.ExtractProfile(context.Background(), "resume text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(profile.Skills) != 2 {
		t.Fatalf("expected empty skill dropped, got %v", profile.Skills)
	}
	if profile.Seniority != matching.SenioritySenior {
		t.Fatalf("expected senior, got %q", profile.Seniority)
	}
	if profile.YearsOfExperience == nil || *profile.YearsOfExperience != 7 {
		t.Fatalf("expected years_of_experience 7, got %v", profile.YearsOfExperience)
	}
}

func TestExtractProfileRejectsUnparsableOutput(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: "I could not find a resume in the input."}
	extractor := NewExtractor(gen, zap.NewNop(), 0)

	_, err := extractor.ExtractProfile(context.Background(), "resume text")
	if !errors.Is(err, ai.ErrUnparsable) {
		t.Fatalf("expected ErrUnparsable, got %v", err)
	}
}

func TestExtractProfileRequiresInput(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor(&stubGenerator{}, zap.NewNop(), 0)

	if _, err := extractor.ExtractProfile(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty resume text")
	}
}

func TestExtractIntentNormalizesEnums(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: `{
		"roles": ["Product Manager"],
		"locations": ["Bangalore"],
		"company_attributes": ["startup", "fintech"],
		"seniority": "principal",
		"remote": "Hybrid",
		"salary_range": {"min": 3000000, "max": 4500000}
	}`}

	extractor := NewExtractor(gen, zap.NewNop(), 0)

	intent, err := extractor.ExtractIntent(context.Background(), "pm roles at fintech startups")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if intent.Seniority != "" {
		t.Fatalf("expected unknown seniority dropped, got %q", intent.Seniority)
	}
	if intent.Remote != matching.RemoteModeHybrid {
		t.Fatalf("expected hybrid, got %q", intent.Remote)
	}
	if intent.RecencyWindow != matching.RecencyMonth {
		t.Fatalf("expected month default, got %q", intent.RecencyWindow)
	}
	if intent.SalaryRange == nil || intent.SalaryRange.Max != 4500000 {
		t.Fatalf("expected salary range, got %v", intent.SalaryRange)
	}
}

func TestRationaleIsSanitized(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: "\"Strong overlap in Go and payments infrastructure at senior level.\"\nExtra commentary."}
	extractor := NewExtractor(gen, zap.NewNop(), 0)

	got, err := extractor.Rationale(context.Background(), &matching.ParsedProfile{Titles: []string{"Backend Engineer"}}, matching.JobItem{Title: "Senior Go Engineer", Company: "Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Strong overlap in Go and payments infrastructure at senior level."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRationalePropagatesGeneratorError(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{err: errors.New("quota exceeded")}
	extractor := NewExtractor(gen, zap.NewNop(), 0)

	if _, err := extractor.Rationale(context.Background(), &matching.ParsedProfile{}, matching.JobItem{}); err == nil {
		t.Fatal("expected error from generator")
	}
}
