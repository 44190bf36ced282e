package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reviewpilot/reviewpilot/internal/model"
	"github.com/reviewpilot/reviewpilot/internal/review"
	"github.com/reviewpilot/reviewpilot/internal/store"
	"github.com/reviewpilot/reviewpilot/pkg/idgen"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
)

// ReviewRunner runs the review pipeline for one merge request
type ReviewRunner interface {
	Run(ctx context.Context, input *review.Input) (*review.Result, error)
}

// ExecutionResult is the outcome of one task execution. The executor
// never returns an error: every failure is folded into the result so
// the caller makes all retry decisions.
type ExecutionResult struct {
	Success  bool
	TaskID   string
	ReviewID string
	Err      error
	Duration time.Duration
}

// Executor adapts a queued task into a review run and records the link
// between the task and its Review row.
type Executor struct {
	store  store.Store
	runner ReviewRunner
	logger *zap.Logger
}

// NewExecutor creates a task executor
func NewExecutor(s store.Store, runner ReviewRunner) *Executor {
	return &Executor{
		store:  s,
		runner: runner,
		logger: logger.Named("executor"),
	}
}

// Execute runs the review for the task. A retried task reuses the
// Review row it already references so history stays in one place;
// a first attempt creates a fresh row.
func (e *Executor) Execute(ctx context.Context, task *model.QueueTask) (result *ExecutionResult) {
	start := time.Now()
	result = &ExecutionResult{TaskID: task.ID}
	defer func() {
		// The executor's contract is to never propagate a panic or
		// error past itself.
		if r := recover(); r != nil {
			result.Success = false
			result.Err = fmt.Errorf("execution panicked: %v", r)
			result.Duration = time.Since(start)
			e.logger.Error("Task execution panicked",
				zap.String("task_id", task.ID),
				zap.Any("panic", r),
			)
		}
	}()

	reviewID, rerun, err := e.resolveReview(task)
	if err != nil {
		result.Err = fmt.Errorf("resolve review record: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	result.ReviewID = reviewID

	e.logger.Info("Executing review task",
		zap.String("task_id", task.ID),
		zap.String("review_id", reviewID),
		zap.String("project", task.ProjectID),
		zap.Int64("mr_iid", task.MRIID),
		zap.Int("attempt", task.AttemptNumber),
		zap.Bool("rerun", rerun),
	)

	_, err = e.runner.Run(ctx, &review.Input{
		ReviewID:  reviewID,
		Rerun:     rerun,
		ProjectID: task.ProjectID,
		MRIID:     task.MRIID,
	})
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = err
		return result
	}

	result.Success = true
	return result
}

// resolveReview returns the Review row id for the task, creating one
// when the task does not yet reference any.
func (e *Executor) resolveReview(task *model.QueueTask) (string, bool, error) {
	if task.ReviewID != "" {
		if _, err := e.store.Review().GetByID(task.ReviewID); err == nil {
			return task.ReviewID, true, nil
		}
		// A dangling reference falls through to creating a new row
		e.logger.Warn("Task references missing review, creating a new one",
			zap.String("task_id", task.ID),
			zap.String("review_id", task.ReviewID),
		)
	}

	rev := &model.Review{
		ID:          idgen.NewReviewID(),
		ProjectID:   task.ProjectID,
		MRIID:       task.MRIID,
		Status:      model.ReviewStatusPending,
		TriggeredBy: task.TriggerSource,
	}
	if err := e.store.Review().Create(rev); err != nil {
		return "", false, err
	}
	if err := e.store.Task().UpdateReviewID(task.ID, rev.ID); err != nil {
		e.logger.Warn("Failed to link task to review",
			zap.String("task_id", task.ID),
			zap.String("review_id", rev.ID),
			zap.Error(err),
		)
	}
	return rev.ID, false, nil
}
