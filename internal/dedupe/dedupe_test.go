package dedupe

import (
	"testing"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

func TestDedupeStripsQueryParamsAndTrailingSlash(t *testing.T) {
	t.Parallel()

	jobs := []matching.JobItem{
		{Title: "PM", Company: "Acme", ApplyURL: "https://example.com/jobs/123?utm=x"},
		{Title: "PM", Company: "Acme", ApplyURL: "https://example.com/jobs/123"},
		{Title: "PM", Company: "Acme", ApplyURL: "HTTPS://EXAMPLE.COM/jobs/123/"},
	}

	out := Dedupe(jobs)
	if len(out) != 1 {
		t.Fatalf("expected 1 job after dedupe, got %d", len(out))
	}
	if out[0].ApplyURL != "https://example.com/jobs/123?utm=x" {
		t.Fatalf("first occurrence must win, got %q", out[0].ApplyURL)
	}
}

func TestDedupeFallsBackToTitleCompany(t *testing.T) {
	t.Parallel()

	jobs := []matching.JobItem{
		{Title: "Product Manager", Company: "Acme"},
		{Title: "product manager", Company: "ACME"},
		{Title: "Product Manager", Company: "Other"},
	}

	out := Dedupe(jobs)
	if len(out) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(out))
	}
	if out[1].Company != "Other" {
		t.Fatalf("distinct company must survive, got %+v", out[1])
	}
}

func TestDedupeNeverGrowsAndKeysAreUnique(t *testing.T) {
	t.Parallel()

	jobs := []matching.JobItem{
		{Title: "A", Company: "X", ApplyURL: "https://a.com/1"},
		{Title: "B", Company: "Y", ApplyURL: "https://a.com/2?ref=z"},
		{Title: "A", Company: "X"},
		{Title: "B", Company: "Y", ApplyURL: "https://a.com/2"},
		{Title: "C", Company: "Z", ApplyURL: "https://a.com/3"},
	}

	out := Dedupe(jobs)
	if len(out) > len(jobs) {
		t.Fatalf("output (%d) must never exceed input (%d)", len(out), len(jobs))
	}

	keys := make(map[string]struct{})
	for _, job := range out {
		key := dedupeKey(job)
		if _, dup := keys[key]; dup {
			t.Fatalf("duplicate key %q in output", key)
		}
		keys[key] = struct{}{}
	}
}

func TestDedupePreservesOrder(t *testing.T) {
	t.Parallel()

	jobs := []matching.JobItem{
		{Title: "First", Company: "A", ApplyURL: "https://a.com/1"},
		{Title: "Second", Company: "B", ApplyURL: "https://a.com/2"},
		{Title: "Third", Company: "C", ApplyURL: "https://a.com/3"},
	}

	out := Dedupe(jobs)
	for i, job := range out {
		if job.Title != jobs[i].Title {
			t.Fatalf("order changed at %d: got %q", i, job.Title)
		}
	}
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	jobs := Normalize([]matching.JobItem{{
		Title:              "  Senior\t Product   Manager ",
		Company:            " Acme \n Corp ",
		Location:           "Bangalore,   India",
		DescriptionSnippet: "  lead   the team ",
	}})

	got := jobs[0]
	if got.Title != "Senior Product Manager" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.Company != "Acme Corp" {
		t.Fatalf("company = %q", got.Company)
	}
	if got.Location != "Bangalore, India" {
		t.Fatalf("location = %q", got.Location)
	}
	if got.DescriptionSnippet != "lead the team" {
		t.Fatalf("snippet = %q", got.DescriptionSnippet)
	}
}
