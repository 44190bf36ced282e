package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reviewpilot/reviewpilot/internal/diff"
	"github.com/reviewpilot/reviewpilot/internal/engine/retry"
	"github.com/reviewpilot/reviewpilot/internal/model"
	"github.com/reviewpilot/reviewpilot/internal/platform"
	"github.com/reviewpilot/reviewpilot/internal/prompt"
	"github.com/reviewpilot/reviewpilot/internal/store"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
	"github.com/reviewpilot/reviewpilot/pkg/metrics"
)

// Config controls orchestrator behavior
type Config struct {
	// Filter bounds which files reach the analyzer
	Filter FilterConfig

	// InlineComments enables positioned discussion comments
	InlineComments bool

	// Blocking makes above-threshold findings fail the review and the
	// commit status; non-blocking reviews are advisory only.
	Blocking bool

	// FailureThreshold is the minimum severity that counts as an issue
	FailureThreshold Severity

	// StatusName is the commit status context name
	StatusName string
}

// Input identifies the merge request to review
type Input struct {
	// ReviewID is the pre-created Review row to record against
	ReviewID string

	// Rerun marks a retry of an earlier attempt
	Rerun bool

	ProjectID string
	MRIID     int64
}

// Result aggregates a completed run
type Result struct {
	// Analysis is the validated analyzer output
	Analysis *Analysis

	// CommentsPosted is the number of inline comments actually posted
	CommentsPosted int

	// Errors accumulates non-fatal per-item failures
	Errors []string

	// Failed is true when above-threshold findings block the review
	Failed bool
}

// Orchestrator runs the end-to-end review pipeline for one merge request
type Orchestrator struct {
	platform platform.Client
	analyzer *Analyzer
	store    store.Store
	metrics  *metrics.Metrics
	cfg      Config
	logger   *zap.Logger
}

// NewOrchestrator wires the pipeline. metrics may be nil in tests.
func NewOrchestrator(p platform.Client, a *Analyzer, s store.Store, m *metrics.Metrics, cfg Config) *Orchestrator {
	if cfg.StatusName == "" {
		cfg.StatusName = "reviewpilot"
	}
	if cfg.FailureThreshold == "" {
		cfg.FailureThreshold = SeverityCritical
	}
	return &Orchestrator{
		platform: p,
		analyzer: a,
		store:    s,
		metrics:  m,
		cfg:      cfg,
		logger:   logger.Named("orchestrator"),
	}
}

// Run executes the review pipeline. The returned error is fatal to the
// task and feeds the retry policy; per-item failures are accumulated in
// Result.Errors instead.
func (o *Orchestrator) Run(ctx context.Context, input *Input) (*Result, error) {
	log := o.logger.With(
		zap.String("review_id", input.ReviewID),
		zap.String("project", input.ProjectID),
		zap.Int64("mr_iid", input.MRIID),
	)

	// Fetching the diff is the one fatal platform call: without it
	// there is nothing to review.
	changes, err := o.platform.GetChanges(ctx, input.ProjectID, input.MRIID)
	if err != nil {
		log.Error("Failed to fetch merge request changes", zap.Error(err))
		return nil, fmt.Errorf("fetch changes: %w", err)
	}
	mr := changes.MergeRequest
	startedAt := time.Now()

	if err := o.store.Review().ResetForRun(input.ReviewID, mr.SHA, startedAt, input.Rerun); err != nil {
		return nil, fmt.Errorf("start review record: %w", err)
	}

	result := &Result{}

	// Reconcile earlier feedback so re-review replaces, not accumulates
	summaryNoteID := o.resetPriorFeedback(ctx, input, result)

	// Best-effort progress signals
	summaryNoteID = o.upsertSummaryNote(ctx, input, summaryNoteID, renderProgressBody(mr.SHA), result)
	o.setCommitStatus(ctx, input, mr.SHA, platform.CommitStateRunning, "review in progress", result)

	files := FilterFiles(changes.Diffs, o.cfg.Filter)
	log.Info("Filtered merge request files",
		zap.Int("total", len(changes.Diffs)),
		zap.Int("reviewable", len(files)),
	)

	buildCtx := &prompt.BuildContext{
		ProjectID:    input.ProjectID,
		MRIID:        input.MRIID,
		Title:        mr.Title,
		Description:  mr.Description,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
	}

	analysis, err := o.analyzer.Analyze(ctx, buildCtx, files)
	if err != nil {
		o.recordModelRequest("error")
		o.persistErrorLog(input.ReviewID, analysis, err)
		o.finishReview(input.ReviewID, model.ReviewStatusFailed, err.Error())
		o.upsertSummaryNote(ctx, input, summaryNoteID, renderErrorBody(mr.SHA, err), result)
		o.setCommitStatus(ctx, input, mr.SHA, platform.CommitStateFailed, "review failed", result)
		return nil, fmt.Errorf("analyze diff: %w", err)
	}
	if analysis.Model != "" {
		o.recordModelRequest("success")
	}
	result.Analysis = analysis

	// Inline findings are per-item best-effort
	if o.cfg.InlineComments {
		o.postInlineComments(ctx, input, mr, files, analysis.Review.Comments, result)
	}

	o.persistResultLog(input.ReviewID, analysis, result)

	hasIssues := analysis.Review.HasIssuesAtOrAbove(o.cfg.FailureThreshold)
	result.Failed = hasIssues && o.cfg.Blocking

	finalStatus := model.ReviewStatusCompleted
	commitState := platform.CommitStateSuccess
	statusDesc := "review passed"
	if result.Failed {
		finalStatus = model.ReviewStatusFailed
		commitState = platform.CommitStateFailed
		statusDesc = fmt.Sprintf("found issues at or above %s severity", o.cfg.FailureThreshold)
	}

	o.finishReview(input.ReviewID, finalStatus, "")
	o.upsertSummaryNote(ctx, input, summaryNoteID, renderSummaryBody(mr.SHA, analysis, result.CommentsPosted), result)
	o.setCommitStatus(ctx, input, mr.SHA, commitState, statusDesc, result)

	log.Info("Review run finished",
		zap.String("status", string(finalStatus)),
		zap.Int("comments_found", len(analysis.Review.Comments)),
		zap.Int("comments_posted", result.CommentsPosted),
		zap.Int("item_errors", len(result.Errors)),
	)
	return result, nil
}

// resetPriorFeedback finds the existing summary note to reuse and
// deletes stale marker-tagged inline notes from earlier runs. All
// failures here are recoverable.
func (o *Orchestrator) resetPriorFeedback(ctx context.Context, input *Input, result *Result) int64 {
	discussions, err := o.platform.ListDiscussions(ctx, input.ProjectID, input.MRIID)
	if err != nil {
		result.addError(fmt.Sprintf("list discussions: %v", err))
		return 0
	}

	var summaryNoteID int64
	for _, d := range discussions {
		for _, n := range d.Notes {
			switch {
			case strings.Contains(n.Body, SummaryMarker):
				if summaryNoteID == 0 {
					summaryNoteID = n.ID
				}
			case strings.Contains(n.Body, InlineMarker):
				if err := o.platform.DeleteDiscussionNote(ctx, input.ProjectID, input.MRIID, d.ID, n.ID); err != nil {
					result.addError(fmt.Sprintf("delete stale inline note %d: %v", n.ID, err))
				}
			}
		}
	}
	return summaryNoteID
}

// upsertSummaryNote updates the existing summary note or creates one,
// returning the note id for subsequent updates. Best-effort.
func (o *Orchestrator) upsertSummaryNote(ctx context.Context, input *Input, noteID int64, body string, result *Result) int64 {
	if noteID != 0 {
		err := o.platform.UpdateNote(ctx, input.ProjectID, input.MRIID, noteID, body)
		if err == nil {
			return noteID
		}
		result.addError(fmt.Sprintf("update summary note %d: %v", noteID, err))
	}
	note, err := o.platform.CreateNote(ctx, input.ProjectID, input.MRIID, body)
	if err != nil {
		result.addError(fmt.Sprintf("create summary note: %v", err))
		return noteID
	}
	return note.ID
}

// setCommitStatus publishes a commit status, best-effort
func (o *Orchestrator) setCommitStatus(ctx context.Context, input *Input, sha string, state platform.CommitState, desc string, result *Result) {
	err := o.platform.SetCommitStatus(ctx, input.ProjectID, sha, &platform.CommitStatus{
		State:       state,
		Name:        o.cfg.StatusName,
		Description: desc,
	})
	if err != nil {
		result.addError(fmt.Sprintf("set commit status %s: %v", state, err))
	}
}

// postInlineComments posts a positioned discussion per finding.
// Failures are recoverable per comment and never abort the run.
func (o *Orchestrator) postInlineComments(ctx context.Context, input *Input, mr *platform.MergeRequest, files []*diff.File, comments []InlineComment, result *Result) {
	byPath := make(map[string]*diff.File, len(files))
	for _, f := range files {
		byPath[f.Path()] = f
	}

	for i := range comments {
		c := &comments[i]
		f, ok := byPath[c.Path]
		if !ok {
			result.addError(fmt.Sprintf("inline comment for unknown file %s", c.Path))
			continue
		}

		pos := &platform.Position{
			BaseSHA:  mr.DiffRefs.BaseSHA,
			StartSHA: mr.DiffRefs.StartSHA,
			HeadSHA:  mr.DiffRefs.HeadSHA,
			NewPath:  f.Path(),
			OldPath:  f.OldPath,
			NewLine:  c.Line,
		}
		if err := o.platform.CreateInlineComment(ctx, input.ProjectID, input.MRIID, renderInlineBody(c), pos); err != nil {
			result.addError(fmt.Sprintf("post inline comment %s:%d: %v", c.Path, c.Line, err))
			continue
		}
		result.CommentsPosted++
		if o.metrics != nil {
			o.metrics.CommentsPosted.Inc()
		}
	}
}

// persistResultLog writes the result log row for the run
func (o *Orchestrator) persistResultLog(reviewID string, analysis *Analysis, result *Result) {
	payload := model.JSONMap{
		"comments": analysis.Review.Comments,
		"counts":   analysis.Review.Summary.Counts,
	}
	if len(result.Errors) > 0 {
		payload["item_errors"] = result.Errors
	}
	entry := &model.ReviewLog{
		ReviewID:       reviewID,
		Kind:           model.LogKindResult,
		Provider:       analysis.Provider,
		Model:          analysis.Model,
		Summary:        analysis.Review.Summary.Assessment,
		CommentsFound:  len(analysis.Review.Comments),
		CommentsPosted: result.CommentsPosted,
		DurationMs:     analysis.Duration.Milliseconds(),
		Payload:        payload,
	}
	if err := o.store.Review().CreateLog(entry); err != nil {
		o.logger.Error("Failed to persist result log",
			zap.String("review_id", reviewID),
			zap.Error(err),
		)
	}
}

// persistErrorLog writes the error log row for a failed analysis
func (o *Orchestrator) persistErrorLog(reviewID string, analysis *Analysis, cause error) {
	entry := &model.ReviewLog{
		ReviewID:     reviewID,
		Kind:         model.LogKindError,
		ErrorType:    string(retry.Classify(cause)),
		ErrorMessage: cause.Error(),
		Retryable:    retry.IsRetryable(cause),
	}
	if analysis != nil {
		entry.Provider = analysis.Provider
		entry.Model = analysis.Model
		entry.DurationMs = analysis.Duration.Milliseconds()
	}
	if err := o.store.Review().CreateLog(entry); err != nil {
		o.logger.Error("Failed to persist error log",
			zap.String("review_id", reviewID),
			zap.Error(err),
		)
	}
}

// finishReview closes out the Review row
func (o *Orchestrator) finishReview(reviewID string, status model.ReviewStatus, errMsg string) {
	if err := o.store.Review().Finish(reviewID, status, errMsg, time.Now()); err != nil {
		o.logger.Error("Failed to finish review record",
			zap.String("review_id", reviewID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) recordModelRequest(outcome string) {
	if o.metrics != nil {
		o.metrics.ModelRequests.WithLabelValues(outcome).Inc()
	}
}

func (r *Result) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}
