package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpilot/reviewpilot/internal/platform"
)

func fileDiff(path, body string) *platform.FileDiff {
	return &platform.FileDiff{OldPath: path, NewPath: path, Diff: body}
}

const smallDiff = "@@ -1,2 +1,3 @@\n a\n+b\n c\n"

func TestFilterFiles(t *testing.T) {
	diffs := []*platform.FileDiff{
		fileDiff("main.go", smallDiff),
		fileDiff("vendor/lib/x.go", smallDiff),
		fileDiff("app.min.js", smallDiff),
		{OldPath: "gone.go", Diff: smallDiff, DeletedFile: true},
	}

	files := FilterFiles(diffs, FilterConfig{
		SkipGlobs: []string{"vendor/**", "*.min.js"},
	})

	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0].Path())
}

func TestFilterFiles_MaxFiles(t *testing.T) {
	diffs := []*platform.FileDiff{
		fileDiff("a.go", smallDiff),
		fileDiff("b.go", smallDiff),
		fileDiff("c.go", smallDiff),
	}

	files := FilterFiles(diffs, FilterConfig{MaxFiles: 2})
	require.Len(t, files, 2)
	assert.Equal(t, "a.go", files[0].Path())
	assert.Equal(t, "b.go", files[1].Path())
}

func TestFilterFiles_MaxLinesPerFile(t *testing.T) {
	files := FilterFiles([]*platform.FileDiff{fileDiff("a.go", smallDiff)}, FilterConfig{MaxLinesPerFile: 2})
	require.Len(t, files, 1)
	assert.Equal(t, 2, files[0].LineCount())
}

func TestFilterFiles_DropsEmptyDiffs(t *testing.T) {
	files := FilterFiles([]*platform.FileDiff{fileDiff("a.go", "")}, FilterConfig{})
	assert.Empty(t, files)
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		path string
		glob string
		want bool
	}{
		{"vendor/lib/x.go", "vendor/**", true},
		{"vendor", "vendor/**", true},
		{"internal/vendor.go", "vendor/**", false},
		{"dist/app.min.js", "*.min.js", true},
		{"go.sum", "go.sum", true},
		{"a/b/go.sum", "go.sum", true},
		{"main.go", "*.md", false},
		{"docs/readme.md", "*.md", true},
	}
	for _, tt := range tests {
		if got := matchesAny(tt.path, []string{tt.glob}); got != tt.want {
			t.Errorf("matchesAny(%q, %q) = %v, want %v", tt.path, tt.glob, got, tt.want)
		}
	}
}
