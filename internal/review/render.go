package review

import (
	"fmt"
	"strings"
	"time"
)

// Marker tokens identify comments owned by this system so repeated runs
// can find and replace them instead of accumulating duplicates.
// HTML comments are invisible in rendered markdown.
const (
	SummaryMarker = "<!-- reviewpilot:summary -->"
	InlineMarker  = "<!-- reviewpilot:inline -->"
)

// severityLabels maps severities to display badges
var severityLabels = map[Severity]string{
	SeverityCritical:   "🔴 Critical",
	SeverityMajor:      "🟠 Major",
	SeverityMinor:      "🟡 Minor",
	SeveritySuggestion: "🔵 Suggestion",
}

// renderProgressBody is the placeholder note shown while a review runs
func renderProgressBody(commitSHA string) string {
	var sb strings.Builder
	sb.WriteString(SummaryMarker)
	sb.WriteString("\n\n## Code Review\n\n")
	fmt.Fprintf(&sb, "⏳ Reviewing commit `%s`…\n", shortSHA(commitSHA))
	return sb.String()
}

// renderErrorBody is the note left behind when a review fails
func renderErrorBody(commitSHA string, err error) string {
	var sb strings.Builder
	sb.WriteString(SummaryMarker)
	sb.WriteString("\n\n## Code Review\n\n")
	fmt.Fprintf(&sb, "❌ Review of commit `%s` failed: %v\n", shortSHA(commitSHA), err)
	return sb.String()
}

// renderSummaryBody renders the final summary note
func renderSummaryBody(commitSHA string, analysis *Analysis, posted int) string {
	review := analysis.Review
	var sb strings.Builder

	sb.WriteString(SummaryMarker)
	sb.WriteString("\n\n## Code Review\n\n")
	fmt.Fprintf(&sb, "%s\n", review.Summary.Assessment)

	if len(review.Summary.Positives) > 0 {
		sb.WriteString("\n**Strengths**\n\n")
		for _, p := range review.Summary.Positives {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}
	if len(review.Summary.Concerns) > 0 {
		sb.WriteString("\n**Concerns**\n\n")
		for _, c := range review.Summary.Concerns {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}

	if len(review.Comments) > 0 {
		sb.WriteString("\n| Severity | Count |\n|---|---|\n")
		for _, sev := range []Severity{SeverityCritical, SeverityMajor, SeverityMinor, SeveritySuggestion} {
			if n := review.Summary.Counts[sev]; n > 0 {
				fmt.Fprintf(&sb, "| %s | %d |\n", severityLabels[sev], n)
			}
		}
	} else {
		sb.WriteString("\n✅ No issues found.\n")
	}

	sb.WriteString("\n---\n")
	fmt.Fprintf(&sb, "*Reviewed commit `%s`", shortSHA(commitSHA))
	if analysis.Model != "" {
		fmt.Fprintf(&sb, " with %s", analysis.Model)
	}
	if analysis.Duration > 0 {
		fmt.Fprintf(&sb, " in %s", analysis.Duration.Round(time.Second))
	}
	if posted > 0 {
		fmt.Fprintf(&sb, ", %d inline comment(s)", posted)
	}
	sb.WriteString("*\n")
	return sb.String()
}

// renderInlineBody renders one inline finding
func renderInlineBody(c *InlineComment) string {
	var sb strings.Builder
	sb.WriteString(InlineMarker)
	fmt.Fprintf(&sb, "\n**%s**: %s\n", severityLabels[c.Severity], c.Message)
	if c.Suggestion != "" {
		fmt.Fprintf(&sb, "\n```suggestion\n%s\n```\n", c.Suggestion)
	}
	return sb.String()
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
