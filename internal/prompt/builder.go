// Package prompt builds the system and user prompts for diff analysis.
package prompt

import (
	"fmt"
	"strings"

	"github.com/reviewpilot/reviewpilot/internal/diff"
)

// BuildContext carries merge request metadata into the user prompt
type BuildContext struct {
	// ProjectID is the full project path
	ProjectID string

	// MRIID is the merge request number
	MRIID int64

	// Title is the merge request title
	Title string

	// Description is the merge request description
	Description string

	// SourceBranch and TargetBranch identify the merge direction
	SourceBranch string
	TargetBranch string
}

const systemPersona = `You are an experienced software engineer performing a code review on a merge request.
Review only the changed lines shown in the diff. Judge correctness, security, concurrency safety, error handling, and maintainability. Do not comment on style preferences a formatter would fix, and do not praise code in inline comments.

Severity rubric:
- critical: bugs, data loss, security vulnerabilities, or crashes that will occur in production
- major: likely bugs, race conditions, resource leaks, or misuse of APIs
- minor: correct but fragile or unclear code worth improving
- suggestion: optional improvements, naming, small simplifications

Every inline comment must reference a file path and a line number that appear in the diff. When you propose replacement code, put the literal replacement in the suggestion field.`

// System builds the system prompt establishing persona and rubric
func System(outputLanguage string) string {
	if outputLanguage == "" {
		return systemPersona
	}
	return systemPersona + "\n\n" + outputLanguage
}

// User builds the user prompt: MR context followed by per-file diff
// blocks with resolved new-file line numbers.
func User(ctx *BuildContext, files []*diff.File) string {
	var sb strings.Builder

	sb.WriteString("Review the following merge request.\n\n")
	fmt.Fprintf(&sb, "Project: %s\n", ctx.ProjectID)
	fmt.Fprintf(&sb, "Merge request !%d: %s\n", ctx.MRIID, ctx.Title)
	fmt.Fprintf(&sb, "Branch: %s -> %s\n", ctx.SourceBranch, ctx.TargetBranch)
	if ctx.Description != "" {
		fmt.Fprintf(&sb, "\nDescription:\n%s\n", ctx.Description)
	}

	sb.WriteString("\nChanged files:\n")
	for _, f := range files {
		sb.WriteString("\n")
		sb.WriteString(RenderFile(f))
	}

	return sb.String()
}

// RenderFile renders one parsed file as a diff block. Added and context
// lines are prefixed with their new-file line number so the model can
// anchor comments without counting.
func RenderFile(f *diff.File) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "--- %s%s ---\n", f.Path(), fileStatus(f))
	for _, h := range f.Hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@ %s\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount, h.Header)
		for _, l := range h.Lines {
			switch l.Kind {
			case diff.LineAdd:
				fmt.Fprintf(&sb, "%5d + %s\n", l.NewNumber, l.Content)
			case diff.LineDelete:
				fmt.Fprintf(&sb, "      - %s\n", l.Content)
			default:
				fmt.Fprintf(&sb, "%5d   %s\n", l.NewNumber, l.Content)
			}
		}
	}

	return sb.String()
}

func fileStatus(f *diff.File) string {
	switch {
	case f.IsNew:
		return " (new file)"
	case f.IsDeleted:
		return " (deleted)"
	case f.IsRenamed:
		return fmt.Sprintf(" (renamed from %s)", f.OldPath)
	default:
		return ""
	}
}
