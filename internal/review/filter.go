package review

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/reviewpilot/reviewpilot/internal/diff"
	"github.com/reviewpilot/reviewpilot/internal/platform"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
)

// FilterConfig bounds what reaches the analyzer
type FilterConfig struct {
	// SkipGlobs are glob patterns for files excluded from review.
	// A pattern matches against the full path and the base name.
	SkipGlobs []string

	// MaxFiles caps the number of files per review (0 = unlimited)
	MaxFiles int

	// MaxLinesPerFile caps diff lines per file; excess is dropped (0 = unlimited)
	MaxLinesPerFile int
}

// FilterFiles parses the raw platform diffs and applies skip patterns
// and size caps. Deleted files and files with no reviewable lines are
// dropped. Excess files and lines are silently truncated.
func FilterFiles(diffs []*platform.FileDiff, cfg FilterConfig) []*diff.File {
	var files []*diff.File

	for _, d := range diffs {
		if d.DeletedFile {
			continue
		}

		path := d.NewPath
		if path == "" {
			path = d.OldPath
		}
		if matchesAny(path, cfg.SkipGlobs) {
			logger.Debug("Skipping file matching skip pattern", zap.String("path", path))
			continue
		}

		f := diff.Parse(d.OldPath, d.NewPath, d.Diff)
		f.IsNew = d.NewFile
		f.IsRenamed = d.RenamedFile
		f.IsDeleted = d.DeletedFile
		if f.LineCount() == 0 {
			continue
		}
		f.Truncate(cfg.MaxLinesPerFile)
		files = append(files, f)

		if cfg.MaxFiles > 0 && len(files) >= cfg.MaxFiles {
			logger.Debug("File cap reached, dropping remaining files",
				zap.Int("max_files", cfg.MaxFiles),
				zap.Int("total", len(diffs)),
			)
			break
		}
	}

	return files
}

// matchesAny reports whether the path matches any skip pattern.
// Patterns are matched against the full path, the base name, and each
// path prefix so directory patterns like "vendor/*" work as expected.
func matchesAny(path string, globs []string) bool {
	for _, g := range globs {
		if g == "" {
			continue
		}
		if ok, _ := filepath.Match(g, path); ok {
			return true
		}
		if ok, _ := filepath.Match(g, filepath.Base(path)); ok {
			return true
		}
		// Directory prefix patterns: "vendor/**" or "vendor/*"
		if dir, cut := strings.CutSuffix(g, "/**"); cut {
			if path == dir || strings.HasPrefix(path, dir+"/") {
				return true
			}
		}
	}
	return false
}
