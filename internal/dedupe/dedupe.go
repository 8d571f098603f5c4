// Package dedupe canonicalizes raw provider results into the common schema
// and removes duplicates across providers.
package dedupe

import (
	"net/url"
	"strings"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

// Normalize trims and collapses whitespace in the textual fields of each job.
func Normalize(jobs []matching.JobItem) []matching.JobItem {
	out := make([]matching.JobItem, len(jobs))
	for i, job := range jobs {
		job.Title = collapseWhitespace(job.Title)
		job.Company = collapseWhitespace(job.Company)
		job.Location = collapseWhitespace(job.Location)
		job.DescriptionSnippet = collapseWhitespace(job.DescriptionSnippet)
		out[i] = job
	}
	return out
}

// Dedupe drops later occurrences of the same job, preserving input order.
// Identity is the normalized apply URL when present, otherwise the lowercase
// title+company composite.
func Dedupe(jobs []matching.JobItem) []matching.JobItem {
	seen := make(map[string]struct{}, len(jobs))
	out := make([]matching.JobItem, 0, len(jobs))

	for _, job := range jobs {
		key := dedupeKey(job)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, job)
	}

	return out
}

func dedupeKey(job matching.JobItem) string {
	if key := normalizeURL(job.ApplyURL); key != "" {
		return key
	}
	return strings.ToLower(strings.TrimSpace(job.Title)) + "_" + strings.ToLower(strings.TrimSpace(job.Company))
}

// normalizeURL reduces an apply URL to lowercase scheme+host+path with the
// query string and any trailing slash stripped. Tracking parameters otherwise
// make one posting look like many.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Not parseable as an absolute URL; fall back to the trimmed string.
		return strings.ToLower(strings.TrimSuffix(raw, "/"))
	}

	path := strings.TrimSuffix(u.Path, "/")
	return strings.ToLower(u.Scheme + "://" + u.Host + path)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
