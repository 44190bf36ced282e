// Package diff parses unified diff bodies into files, hunks, and lines
// with resolved line numbers. The parsed form is ephemeral: it is rebuilt
// for every review and never persisted.
package diff

import (
	"regexp"
	"strconv"
	"strings"
)

// LineKind classifies a diff line
type LineKind string

const (
	LineAdd     LineKind = "add"
	LineDelete  LineKind = "delete"
	LineContext LineKind = "context"
)

// Line is a single diff line with its resolved positions.
// OldNumber is zero for added lines; NewNumber is zero for deleted lines.
type Line struct {
	Kind      LineKind
	Content   string
	OldNumber int64
	NewNumber int64
}

// Hunk is one @@-delimited section of a file diff
type Hunk struct {
	OldStart int64
	OldCount int64
	NewStart int64
	NewCount int64
	Header   string
	Lines    []Line
}

// File is the parsed diff of one changed file
type File struct {
	OldPath   string
	NewPath   string
	IsNew     bool
	IsRenamed bool
	IsDeleted bool
	Hunks     []Hunk
}

// Path returns the path reviewers should reference: the new path, or the
// old path for deletions.
func (f *File) Path() string {
	if f.NewPath != "" {
		return f.NewPath
	}
	return f.OldPath
}

// LineCount returns the total number of diff lines across all hunks
func (f *File) LineCount() int {
	n := 0
	for _, h := range f.Hunks {
		n += len(h.Lines)
	}
	return n
}

// AddedLineCount returns the number of added lines
func (f *File) AddedLineCount() int {
	n := 0
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if l.Kind == LineAdd {
				n++
			}
		}
	}
	return n
}

// NewLineRange returns the min and max new-file line numbers present in
// the diff as added or context lines. ok is false when the file has no
// such lines (e.g., a pure deletion).
func (f *File) NewLineRange() (min, max int64, ok bool) {
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if l.NewNumber == 0 {
				continue
			}
			if !ok || l.NewNumber < min {
				min = l.NewNumber
			}
			if l.NewNumber > max {
				max = l.NewNumber
			}
			ok = true
		}
	}
	return min, max, ok
}

// Truncate drops diff lines beyond maxLines, removing hunks that become
// empty. A non-positive maxLines leaves the file untouched.
func (f *File) Truncate(maxLines int) {
	if maxLines <= 0 || f.LineCount() <= maxLines {
		return
	}
	remaining := maxLines
	var kept []Hunk
	for _, h := range f.Hunks {
		if remaining <= 0 {
			break
		}
		if len(h.Lines) > remaining {
			h.Lines = h.Lines[:remaining]
		}
		remaining -= len(h.Lines)
		kept = append(kept, h)
	}
	f.Hunks = kept
}

// Hunk headers: @@ -start[,count] +start[,count] @@ optional section
var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)

// Parse parses a single file's unified diff body. The body is the hunk
// stream as returned by the platform API; git-style "diff --git" and
// index headers are tolerated and skipped.
func Parse(oldPath, newPath, body string) *File {
	f := &File{
		OldPath: oldPath,
		NewPath: newPath,
	}

	var current *Hunk
	var oldLine, newLine int64

	for _, raw := range strings.Split(body, "\n") {
		if m := hunkHeaderPattern.FindStringSubmatch(raw); m != nil {
			if current != nil {
				f.Hunks = append(f.Hunks, *current)
			}
			oldStart := parseInt(m[1])
			oldCount := parseIntDefault(m[2], 1)
			newStart := parseInt(m[3])
			newCount := parseIntDefault(m[4], 1)
			current = &Hunk{
				OldStart: oldStart,
				OldCount: oldCount,
				NewStart: newStart,
				NewCount: newCount,
				Header:   strings.TrimSpace(m[5]),
			}
			oldLine = oldStart
			newLine = newStart
			continue
		}

		if current == nil {
			// Skip anything before the first hunk header
			continue
		}

		switch {
		case strings.HasPrefix(raw, "+"):
			current.Lines = append(current.Lines, Line{
				Kind:      LineAdd,
				Content:   raw[1:],
				NewNumber: newLine,
			})
			newLine++
		case strings.HasPrefix(raw, "-"):
			current.Lines = append(current.Lines, Line{
				Kind:      LineDelete,
				Content:   raw[1:],
				OldNumber: oldLine,
			})
			oldLine++
		case strings.HasPrefix(raw, " "):
			current.Lines = append(current.Lines, Line{
				Kind:      LineContext,
				Content:   raw[1:],
				OldNumber: oldLine,
				NewNumber: newLine,
			})
			oldLine++
			newLine++
		case strings.HasPrefix(raw, `\`):
			// "\ No newline at end of file" markers carry no position
		case raw == "":
			// Trailing empty line from the final newline split
		default:
			// Git metadata between hunks (diff --git, index, ---/+++)
		}
	}

	if current != nil {
		f.Hunks = append(f.Hunks, *current)
	}
	return f
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseIntDefault(s string, def int64) int64 {
	if s == "" {
		return def
	}
	return parseInt(s)
}
