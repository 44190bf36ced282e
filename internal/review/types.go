// Package review implements the merge request review pipeline: file
// filtering, model-backed diff analysis, and idempotent publication of
// feedback to the host platform.
package review

// Severity ranks the importance of a finding
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityMajor      Severity = "major"
	SeverityMinor      Severity = "minor"
	SeveritySuggestion Severity = "suggestion"
)

// severityRank orders severities, higher is more severe
var severityRank = map[Severity]int{
	SeveritySuggestion: 1,
	SeverityMinor:      2,
	SeverityMajor:      3,
	SeverityCritical:   4,
}

// Rank returns the numeric order of the severity, 0 for unknown values
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether the severity is one of the defined values
func (s Severity) Valid() bool {
	return severityRank[s] != 0
}

// InlineComment is one model finding anchored to a diff line
type InlineComment struct {
	// Path is the file path relative to the repository root
	Path string `json:"path"`

	// Line is the line number in the new version of the file
	Line int64 `json:"line"`

	// Severity classifies the finding
	Severity Severity `json:"severity"`

	// Message describes the issue
	Message string `json:"message"`

	// Suggestion is an optional literal replacement for the flagged code
	Suggestion string `json:"suggestion,omitempty"`
}

// Summary is the model's overall assessment of the merge request
type Summary struct {
	// Assessment is the free-text overall verdict
	Assessment string `json:"assessment"`

	// Positives lists what the change does well
	Positives []string `json:"positives"`

	// Concerns lists what needs attention
	Concerns []string `json:"concerns"`

	// Counts holds the number of findings per severity
	Counts map[Severity]int `json:"counts"`
}

// ModelReview is the structured output contract of the analyzer
type ModelReview struct {
	Comments []InlineComment `json:"comments"`
	Summary  Summary         `json:"summary"`
}

// CountBySeverity recomputes the summary counts from the comment list
func (r *ModelReview) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, c := range r.Comments {
		counts[c.Severity]++
	}
	return counts
}

// HasIssuesAtOrAbove reports whether any finding meets the threshold
func (r *ModelReview) HasIssuesAtOrAbove(threshold Severity) bool {
	min := threshold.Rank()
	if min == 0 {
		return false
	}
	for sev, count := range r.Summary.Counts {
		if count > 0 && sev.Rank() >= min {
			return true
		}
	}
	return false
}

// NeutralReview returns the empty "nothing to review" result
func NeutralReview() *ModelReview {
	return &ModelReview{
		Comments: []InlineComment{},
		Summary: Summary{
			Assessment: "No reviewable changes found.",
			Positives:  []string{},
			Concerns:   []string{},
			Counts:     map[Severity]int{},
		},
	}
}

// responseSchema is the JSON schema the model output must conform to
func responseSchema() map[string]interface{} {
	severityEnum := []interface{}{
		string(SeverityCritical), string(SeverityMajor),
		string(SeverityMinor), string(SeveritySuggestion),
	}
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []interface{}{"comments", "summary"},
		"properties": map[string]interface{}{
			"comments": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []interface{}{"path", "line", "severity", "message"},
					"properties": map[string]interface{}{
						"path":       map[string]interface{}{"type": "string"},
						"line":       map[string]interface{}{"type": "integer"},
						"severity":   map[string]interface{}{"type": "string", "enum": severityEnum},
						"message":    map[string]interface{}{"type": "string"},
						"suggestion": map[string]interface{}{"type": "string"},
					},
				},
			},
			"summary": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []interface{}{"assessment", "positives", "concerns"},
				"properties": map[string]interface{}{
					"assessment": map[string]interface{}{"type": "string"},
					"positives":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"concerns":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
			},
		},
	}
}
