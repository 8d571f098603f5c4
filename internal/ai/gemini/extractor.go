package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/ai"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Extractor implements profile extraction, intent extraction, and rationale
// generation over a content generator.
type Extractor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed profile_prompt.md
var profilePromptTemplate string

//go:embed intent_prompt.md
var intentPromptTemplate string

//go:embed rationale_prompt.md
var rationalePromptTemplate string

const defaultMaxLogLength = 200

func NewExtractor(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Extractor{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// ExtractProfile parses resume text into a structured profile.
func (e *Extractor) ExtractProfile(ctx context.Context, resumeText string) (*matching.ParsedProfile, error) {
	resumeText = strings.TrimSpace(resumeText)
	if resumeText == "" {
		return nil, fmt.Errorf("resume text must not be empty")
	}

	prompt := strings.ReplaceAll(profilePromptTemplate, "{{RESUME_TEXT}}", resumeText)

	raw, err := e.generate(ctx, "extract profile", prompt)
	if err != nil {
		return nil, err
	}

	return parseProfile(raw)
}

// ExtractIntent parses the candidate's free-text intent.
func (e *Extractor) ExtractIntent(ctx context.Context, intentText string) (*matching.ExtractedIntent, error) {
	intentText = strings.TrimSpace(intentText)
	if intentText == "" {
		return nil, fmt.Errorf("intent text must not be empty")
	}

	prompt := strings.ReplaceAll(intentPromptTemplate, "{{INTENT_TEXT}}", intentText)

	raw, err := e.generate(ctx, "extract intent", prompt)
	if err != nil {
		return nil, err
	}

	return parseIntent(raw)
}

// Rationale produces a one-sentence explanation of why the job fits.
func (e *Extractor) Rationale(ctx context.Context, profile *matching.ParsedProfile, job matching.JobItem) (string, error) {
	if profile == nil {
		return "", fmt.Errorf("profile is required")
	}

	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal profile payload: %w", err)
	}

	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	prompt := strings.ReplaceAll(rationalePromptTemplate, "{{PROFILE_JSON}}", string(profileJSON))
	prompt = strings.ReplaceAll(prompt, "{{JOB_JSON}}", string(jobJSON))

	raw, err := e.generate(ctx, "generate rationale", prompt)
	if err != nil {
		return "", err
	}

	return sanitizeRationale(raw), nil
}

func (e *Extractor) generate(ctx context.Context, step, prompt string) (string, error) {
	e.logger.Debug("gemini generate content request",
		zap.String("operation", step),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}

	e.logger.Debug("gemini generate content response",
		zap.String("operation", step),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return raw, nil
}

func parseProfile(raw string) (*matching.ParsedProfile, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	profile := &matching.ParsedProfile{
		Skills:       coerceStrings(data["skills"]),
		Titles:       coerceStrings(data["titles"]),
		Industries:   coerceStrings(data["industries"]),
		Seniority:    normalizeSeniority(coerceString(data["seniority"])),
		Education:    coerceStrings(data["education"]),
		Achievements: coerceStrings(data["achievements"]),
	}

	if years := coerceFloat(data["years_of_experience"]); !math.IsNaN(years) && years >= 0 {
		n := int(years)
		profile.YearsOfExperience = &n
	}

	return profile, nil
}

func parseIntent(raw string) (*matching.ExtractedIntent, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	intent := &matching.ExtractedIntent{
		Roles:             coerceStrings(data["roles"]),
		Industries:        coerceStrings(data["industries"]),
		Locations:         coerceStrings(data["locations"]),
		CompanyAttributes: coerceStrings(data["company_attributes"]),
		Seniority:         normalizeSeniority(coerceString(data["seniority"])),
		Remote:            normalizeRemote(coerceString(data["remote"])),
		RecencyWindow:     normalizeRecency(coerceString(data["recency_window"])),
	}

	if rangeData, ok := data["salary_range"].(map[string]any); ok {
		min := coerceFloat(rangeData["min"])
		max := coerceFloat(rangeData["max"])
		if !math.IsNaN(min) && !math.IsNaN(max) && max > 0 {
			intent.SalaryRange = &matching.SalaryRange{Min: int(min), Max: int(max)}
		}
	}

	return intent, nil
}

func decodeObject(raw string) (map[string]any, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrUnparsable, err)
	}

	return data, nil
}

func sanitizeRationale(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, "`")
	if idx := strings.IndexByte(cleaned, '\n'); idx != -1 {
		cleaned = cleaned[:idx]
	}
	cleaned = strings.Trim(cleaned, `"`)
	return strings.TrimSpace(cleaned)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func normalizeSeniority(v string) matching.Seniority {
	switch matching.Seniority(strings.ToLower(strings.TrimSpace(v))) {
	case matching.SeniorityEntry:
		return matching.SeniorityEntry
	case matching.SeniorityMid:
		return matching.SeniorityMid
	case matching.SenioritySenior:
		return matching.SenioritySenior
	case matching.SeniorityLead:
		return matching.SeniorityLead
	case matching.SeniorityExecutive:
		return matching.SeniorityExecutive
	default:
		return ""
	}
}

func normalizeRemote(v string) matching.RemoteMode {
	switch matching.RemoteMode(strings.ToLower(strings.TrimSpace(v))) {
	case matching.RemoteModeRemote:
		return matching.RemoteModeRemote
	case matching.RemoteModeHybrid:
		return matching.RemoteModeHybrid
	case matching.RemoteModeOnsite:
		return matching.RemoteModeOnsite
	default:
		return ""
	}
}

func normalizeRecency(v string) matching.RecencyWindow {
	switch matching.RecencyWindow(strings.ToLower(strings.TrimSpace(v))) {
	case matching.RecencyToday:
		return matching.RecencyToday
	case matching.RecencyWeek:
		return matching.RecencyWeek
	case matching.RecencyAll:
		return matching.RecencyAll
	default:
		return matching.RecencyMonth
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}

	return out
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
