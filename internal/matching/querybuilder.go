package matching

import (
	"errors"
	"strings"
)

const (
	maxRolesFromProfile = 3
	maxLocations        = 3
	maxAttributeTokens  = 2
	minQueries          = 3
	fallbackLocation    = "India"
)

// ErrNoRoles indicates that neither the intent nor the parsed profile named a
// target role. The pipeline cannot search without one.
var ErrNoRoles = errors.New("no target roles in intent or profile")

// BuildQueries combines profile and intent into the provider search set.
// Fan-out is deliberately capped (roles × first 3 locations, plus at most one
// fallback) to bound downstream provider cost.
func BuildQueries(profile *ParsedProfile, intent *ExtractedIntent) ([]Query, error) {
	roles := compactStrings(intent.Roles)
	if len(roles) == 0 && profile != nil {
		titles := compactStrings(profile.Titles)
		if len(titles) > maxRolesFromProfile {
			titles = titles[:maxRolesFromProfile]
		}
		roles = titles
	}
	if len(roles) == 0 {
		return nil, ErrNoRoles
	}

	locations := compactStrings(intent.Locations)
	if len(locations) == 0 {
		locations = DefaultLocations
	}
	if len(locations) > maxLocations {
		locations = locations[:maxLocations]
	}

	window := intent.RecencyWindow
	if window == "" {
		window = RecencyMonth
	}

	suffix := querySuffix(intent)

	queries := make([]Query, 0, len(roles)*len(locations)+1)
	for _, role := range roles {
		for _, location := range locations {
			queries = append(queries, Query{
				Text:          strings.TrimSpace(role + suffix),
				Location:      location,
				Remote:        intent.Remote,
				RecencyWindow: window,
			})
		}
	}

	if len(queries) < minQueries {
		queries = append(queries, Query{
			Text:          strings.TrimSpace(roles[0] + suffix),
			Location:      fallbackLocation,
			Remote:        intent.Remote,
			RecencyWindow: window,
		})
	}

	return queries, nil
}

// querySuffix appends up to two company-attribute tokens and the seniority
// token to sharpen the keyword search.
func querySuffix(intent *ExtractedIntent) string {
	var sb strings.Builder

	attrs := compactStrings(intent.CompanyAttributes)
	if len(attrs) > maxAttributeTokens {
		attrs = attrs[:maxAttributeTokens]
	}
	for _, attr := range attrs {
		sb.WriteString(" ")
		sb.WriteString(attr)
	}

	if intent.Seniority != "" {
		sb.WriteString(" ")
		sb.WriteString(string(intent.Seniority))
	}

	return sb.String()
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
