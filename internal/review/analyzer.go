package review

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/reviewpilot/reviewpilot/internal/diff"
	"github.com/reviewpilot/reviewpilot/internal/llm"
	"github.com/reviewpilot/reviewpilot/internal/prompt"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
)

// Tolerance band for model-reported line numbers, in lines. A comment
// whose line falls within this distance of the file's observed diff
// range is snapped inside; further out it is dropped.
const lineTolerance = 10

// AnalyzerConfig holds model invocation parameters
type AnalyzerConfig struct {
	// Temperature for sampling (0 uses the provider default)
	Temperature float32

	// MaxTokens caps the response length (0 uses the provider default)
	MaxTokens int

	// OutputLanguage is an optional response language directive
	OutputLanguage string
}

// Analysis is the analyzer outcome
type Analysis struct {
	// Review is the validated model output
	Review *ModelReview

	// Provider and Model identify what produced the review
	Provider string
	Model    string

	// Duration is the wall time of the model call
	Duration time.Duration

	// Dropped counts comments discarded by line validation
	Dropped int
}

// Analyzer turns parsed diffs into a structured review via a model call
type Analyzer struct {
	provider llm.Provider
	cfg      AnalyzerConfig
	logger   *zap.Logger
}

// NewAnalyzer creates an analyzer backed by the given model provider
func NewAnalyzer(provider llm.Provider, cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{
		provider: provider,
		cfg:      cfg,
		logger:   logger.Named("analyzer"),
	}
}

// Analyze reviews the given files. Empty input returns a neutral result
// without a model call. A provider failure or a response violating the
// output contract is returned as an error; the elapsed time is still
// reported in the returned Analysis.
func (a *Analyzer) Analyze(ctx context.Context, buildCtx *prompt.BuildContext, files []*diff.File) (*Analysis, error) {
	if len(files) == 0 {
		return &Analysis{
			Review:   NeutralReview(),
			Provider: a.provider.Name(),
		}, nil
	}

	req := &llm.Request{
		System:      prompt.System(a.cfg.OutputLanguage),
		Prompt:      prompt.User(buildCtx, files),
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		Schema: &llm.ResponseSchema{
			Name:        "code_review_result",
			Description: "Inline review comments and an overall summary for a merge request diff",
			Schema:      responseSchema(),
			Strict:      true,
		},
	}

	start := time.Now()
	resp, err := a.provider.GenerateStructured(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		a.logger.Error("Model call failed",
			zap.String("provider", a.provider.Name()),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return &Analysis{Provider: a.provider.Name(), Duration: elapsed}, err
	}

	var result ModelReview
	if err := json.Unmarshal([]byte(resp.Content), &result); err != nil {
		a.logger.Error("Model response violates the output contract",
			zap.String("provider", a.provider.Name()),
			zap.String("model", resp.Model),
			zap.Error(err),
		)
		return &Analysis{Provider: a.provider.Name(), Model: resp.Model, Duration: elapsed},
			llm.NewProviderError(a.provider.Name(), "analyze", "response does not match schema", llm.ErrInvalidResponse)
	}

	dropped := a.validateComments(&result, files)
	result.Summary.Counts = result.CountBySeverity()

	a.logger.Info("Analysis completed",
		zap.String("provider", a.provider.Name()),
		zap.String("model", resp.Model),
		zap.Int("comments", len(result.Comments)),
		zap.Int("dropped", dropped),
		zap.Duration("duration", elapsed),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return &Analysis{
		Review:   &result,
		Provider: a.provider.Name(),
		Model:    resp.Model,
		Duration: elapsed,
		Dropped:  dropped,
	}, nil
}

// validateComments drops comments referencing unknown files, invalid
// severities, or lines outside the tolerance band around the file's
// observed diff range. Returns the number of comments dropped.
func (a *Analyzer) validateComments(result *ModelReview, files []*diff.File) int {
	type bounds struct {
		min, max int64
	}
	ranges := make(map[string]bounds, len(files))
	for _, f := range files {
		if min, max, ok := f.NewLineRange(); ok {
			ranges[f.Path()] = bounds{min: min, max: max}
		}
	}

	kept := result.Comments[:0]
	dropped := 0
	for _, c := range result.Comments {
		b, ok := ranges[c.Path]
		if !ok {
			a.logger.Warn("Dropping comment for unknown file", zap.String("path", c.Path))
			dropped++
			continue
		}
		if !c.Severity.Valid() {
			a.logger.Warn("Dropping comment with unknown severity",
				zap.String("path", c.Path),
				zap.String("severity", string(c.Severity)),
			)
			dropped++
			continue
		}
		if c.Line < b.min-lineTolerance || c.Line > b.max+lineTolerance {
			a.logger.Warn("Dropping comment outside diff range",
				zap.String("path", c.Path),
				zap.Int64("line", c.Line),
				zap.Int64("range_min", b.min),
				zap.Int64("range_max", b.max),
			)
			dropped++
			continue
		}
		// Snap near-miss lines back into the observed range
		if c.Line < b.min {
			c.Line = b.min
		}
		if c.Line > b.max {
			c.Line = b.max
		}
		kept = append(kept, c)
	}
	result.Comments = kept
	return dropped
}
