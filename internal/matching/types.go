// Package matching holds the domain types shared across the job-matching
// pipeline: candidate profile and intent, normalized job items, scored
// results, and the persisted run lifecycle.
package matching

import "time"

// Seniority buckets a candidate or role by level.
type Seniority string

const (
	SeniorityEntry     Seniority = "entry"
	SeniorityMid       Seniority = "mid"
	SenioritySenior    Seniority = "senior"
	SeniorityLead      Seniority = "lead"
	SeniorityExecutive Seniority = "executive"
)

// RemoteMode is the candidate's workplace preference.
type RemoteMode string

const (
	RemoteModeRemote RemoteMode = "remote"
	RemoteModeHybrid RemoteMode = "hybrid"
	RemoteModeOnsite RemoteMode = "onsite"
)

// RecencyWindow limits how old a posting may be.
type RecencyWindow string

const (
	RecencyToday RecencyWindow = "today"
	RecencyWeek  RecencyWindow = "week"
	RecencyMonth RecencyWindow = "month"
	RecencyAll   RecencyWindow = "all"
)

// DefaultLocations is used when the candidate does not name any location.
var DefaultLocations = []string{"Bangalore", "Mumbai", "Delhi NCR", "Hyderabad", "Pune", "Gurgaon"}

// ParsedProfile is the structured view of a resume.
type ParsedProfile struct {
	Skills            []string  `json:"skills"`
	Titles            []string  `json:"titles"`
	YearsOfExperience *int      `json:"years_of_experience,omitempty"`
	Industries        []string  `json:"industries"`
	Seniority         Seniority `json:"seniority,omitempty"`
	Education         []string  `json:"education"`
	Achievements      []string  `json:"achievements"`
}

// SalaryRange is an annual range in the candidate's currency.
type SalaryRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ExtractedIntent is the structured view of the candidate's free-text intent.
type ExtractedIntent struct {
	Roles             []string      `json:"roles"`
	Industries        []string      `json:"industries"`
	Locations         []string      `json:"locations"`
	CompanyAttributes []string      `json:"company_attributes"`
	Seniority         Seniority     `json:"seniority,omitempty"`
	Remote            RemoteMode    `json:"remote,omitempty"`
	SalaryRange       *SalaryRange  `json:"salary_range,omitempty"`
	RecencyWindow     RecencyWindow `json:"recency_window"`
}

// JobItem is one normalized job posting, independent of provider.
type JobItem struct {
	Source             string     `json:"source"`
	SourceID           string     `json:"source_id,omitempty"`
	Title              string     `json:"title"`
	Company            string     `json:"company"`
	Location           string     `json:"location,omitempty"`
	PostedAt           *time.Time `json:"posted_at,omitempty"`
	EmploymentType     string     `json:"employment_type,omitempty"`
	Seniority          string     `json:"seniority,omitempty"`
	DescriptionSnippet string     `json:"description_snippet,omitempty"`
	Skills             []string   `json:"skills"`
	ApplyURL           string     `json:"apply_url"`
	Salary             string     `json:"salary,omitempty"`
	Logo               string     `json:"logo,omitempty"`
}

// ScoreBreakdown exposes the individual ranking signals behind a score.
type ScoreBreakdown struct {
	Semantic  float64 `json:"semantic"`
	Skill     float64 `json:"skill"`
	Recency   float64 `json:"recency"`
	Seniority float64 `json:"seniority"`
	Location  float64 `json:"location"`
}

// ScoredJobItem is a JobItem with its blended score in [0,1].
type ScoredJobItem struct {
	JobItem
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"score_breakdown"`
	Rationale string         `json:"rationale,omitempty"`
}

// Query is one provider search, built from profile and intent.
type Query struct {
	Text          string        `json:"text"`
	Location      string        `json:"location"`
	Remote        RemoteMode    `json:"remote,omitempty"`
	RecencyWindow RecencyWindow `json:"recency_window"`
}
