package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reviewpilot/reviewpilot/internal/engine/retry"
	"github.com/reviewpilot/reviewpilot/internal/model"
	"github.com/reviewpilot/reviewpilot/internal/store"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
	"github.com/reviewpilot/reviewpilot/pkg/metrics"
)

// SchedulerConfig holds the immutable scheduler parameters. Changing
// them requires restarting the scheduler.
type SchedulerConfig struct {
	// PollInterval is how often pending tasks are dequeued
	PollInterval time.Duration

	// CleanupInterval is how often old completed tasks are purged
	CleanupInterval time.Duration

	// MaxConcurrentTasks bounds parallel executions
	MaxConcurrentTasks int

	// TaskTimeout is how long a lock may be held before the task is
	// considered stuck and released back to pending
	TaskTimeout time.Duration

	// RetentionDays is the age threshold for the cleanup sweep
	RetentionDays int

	// Policy drives retry decisions on failed executions
	Policy retry.Policy
}

// DefaultSchedulerConfig returns the standard scheduler parameters
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PollInterval:       10 * time.Second,
		CleanupInterval:    time.Hour,
		MaxConcurrentTasks: 3,
		TaskTimeout:        30 * time.Minute,
		RetentionDays:      30,
		Policy:             retry.DefaultPolicy(),
	}
}

// Scheduler polls the task store, submits eligible tasks to the worker
// pool, recovers stuck tasks, and periodically purges old completed
// rows.
type Scheduler struct {
	store    store.Store
	pool     *WorkerPool
	executor *Executor
	cleanup  *store.CleanupService
	cfg      SchedulerConfig
	workerID string

	running  atomic.Bool
	pollBusy atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewScheduler wires the scheduler. m may be nil in tests.
func NewScheduler(s store.Store, pool *WorkerPool, executor *Executor, workerID string, cfg SchedulerConfig, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    s,
		pool:     pool,
		executor: executor,
		cleanup:  store.NewCleanupService(s, cfg.CleanupInterval, cfg.RetentionDays),
		cfg:      cfg,
		workerID: workerID,
		ctx:      ctx,
		cancel:   cancel,
		metrics:  m,
		logger:   logger.Named("scheduler"),
	}
}

// Start begins the poll and cleanup timers. The first poll runs
// immediately so a restart picks up pending work without delay.
func (s *Scheduler) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	s.logger.Info("Scheduler starting",
		zap.String("worker_id", s.workerID),
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Int("max_concurrent", s.cfg.MaxConcurrentTasks),
		zap.Duration("task_timeout", s.cfg.TaskTimeout),
	)

	if err := s.cleanup.Start(); err != nil {
		s.logger.Error("Failed to start cleanup service", zap.Error(err))
	}

	s.wg.Add(1)
	go s.pollLoop()
}

// pollLoop drives the poll ticker until Stop
func (s *Scheduler) pollLoop() {
	defer s.wg.Done()

	s.safePoll()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.safePoll()
		}
	}
}

// safePoll contains any failure inside one poll tick so the timer loop
// survives.
func (s *Scheduler) safePoll() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Poll tick panicked", zap.Any("panic", r))
		}
	}()

	// Overlapping timer fires are skipped; the claim itself is atomic
	// so a skipped tick never loses work.
	if !s.pollBusy.CompareAndSwap(false, true) {
		return
	}
	defer s.pollBusy.Store(false)

	s.poll()
	s.recoverStuckTasks()
}

// poll dequeues up to the available capacity and submits each task to
// the worker pool without awaiting completion.
func (s *Scheduler) poll() {
	for {
		available := s.cfg.MaxConcurrentTasks - s.pool.RunningCount()
		if available <= 0 {
			return
		}

		task, err := s.store.Task().Dequeue(s.workerID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Error("Dequeue failed", zap.Error(err))
			}
			return
		}

		if err := s.pool.Execute(task, s.runTask); err != nil {
			// Admission refused: hand the claim back so the task is
			// picked up on a later tick.
			s.logger.Warn("Pool rejected task, releasing lock",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			if relErr := s.store.Task().ReleaseLock(task.ID); relErr != nil {
				s.logger.Error("Failed to release lock after rejection",
					zap.String("task_id", task.ID),
					zap.Error(relErr),
				)
			}
			return
		}
	}
}

// runTask executes one task and records its outcome. Runs on a pool
// goroutine; the returned bool feeds the pool counters.
func (s *Scheduler) runTask(task *model.QueueTask) bool {
	// Executions deliberately do not inherit the scheduler context:
	// Stop drains in-flight reviews instead of cancelling them.
	result := s.executor.Execute(context.Background(), task)
	s.finishTask(task, result)
	return result.Success
}

// finishTask applies the execution outcome to the task store,
// consulting the retry policy on failure.
func (s *Scheduler) finishTask(task *model.QueueTask, result *ExecutionResult) {
	if s.metrics != nil && result.Duration > 0 {
		s.metrics.ReviewDuration.Observe(result.Duration.Seconds())
	}

	if result.Success {
		if err := s.store.Task().MarkCompleted(task.ID); err != nil {
			s.logger.Error("Failed to mark task completed",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
		}
		s.logger.Info("Task completed",
			zap.String("task_id", task.ID),
			zap.String("review_id", result.ReviewID),
			zap.Duration("duration", result.Duration),
		)
		return
	}

	errClass := retry.Classify(result.Err)
	var nextRetryAt *time.Time
	if s.cfg.Policy.ShouldRetry(task.AttemptNumber, result.Err) {
		// Backoff grows with the number of completed attempts;
		// the first retry uses retryCount=0.
		next := s.cfg.Policy.NextRetryTime(time.Now(), task.AttemptNumber-1, result.Err)
		nextRetryAt = &next
	}

	errMsg := ""
	if result.Err != nil {
		errMsg = result.Err.Error()
	}
	if err := s.store.Task().MarkFailed(task.ID, string(errClass), errMsg, nextRetryAt); err != nil {
		s.logger.Error("Failed to mark task failed",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}

	if nextRetryAt != nil {
		s.logger.Warn("Task failed, retry scheduled",
			zap.String("task_id", task.ID),
			zap.String("error_class", string(errClass)),
			zap.Int("attempt", task.AttemptNumber),
			zap.Time("next_retry_at", *nextRetryAt),
			zap.Error(result.Err),
		)
	} else {
		s.finalizeReview(result.ReviewID, errMsg)
		s.logger.Error("Task failed permanently",
			zap.String("task_id", task.ID),
			zap.String("error_class", string(errClass)),
			zap.Int("attempt", task.AttemptNumber),
			zap.Error(result.Err),
		)
	}
}

// finalizeReview closes out the linked Review when its task fails
// terminally. A run that dies before the pipeline reaches the review
// (MR fetch failure, panic) would otherwise leave the row pending or
// running forever once retries are exhausted.
func (s *Scheduler) finalizeReview(reviewID, errMsg string) {
	if reviewID == "" {
		return
	}
	rev, err := s.store.Review().GetByID(reviewID)
	if err != nil {
		s.logger.Error("Failed to load review for finalization",
			zap.String("review_id", reviewID),
			zap.Error(err),
		)
		return
	}
	if rev.Status == model.ReviewStatusCompleted || rev.Status == model.ReviewStatusFailed {
		return
	}
	if err := s.store.Review().Finish(reviewID, model.ReviewStatusFailed, errMsg, time.Now()); err != nil {
		s.logger.Error("Failed to finalize review",
			zap.String("review_id", reviewID),
			zap.Error(err),
		)
	}
}

// recoverStuckTasks releases locks held longer than the task timeout.
// Recovery does not increment the attempt counter; only explicit
// failure does.
func (s *Scheduler) recoverStuckTasks() {
	stuck, err := s.store.Task().GetStuck(s.cfg.TaskTimeout)
	if err != nil {
		s.logger.Error("Failed to query stuck tasks", zap.Error(err))
		return
	}

	for _, task := range stuck {
		// Tasks still executing in this process are not stuck, just
		// slow; releasing them would double-run the review.
		if s.pool.IsRunning(task.ID) {
			continue
		}
		if err := s.store.Task().ReleaseLock(task.ID); err != nil {
			s.logger.Error("Failed to release stuck task",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}
		s.logger.Warn("Recovered stuck task",
			zap.String("task_id", task.ID),
			zap.String("locked_by", task.LockedBy),
			zap.Timep("locked_at", task.LockedAt),
		)
	}
}

// Stop halts the timers and drains the worker pool. In-flight
// executions are awaited, never cancelled.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.logger.Info("Scheduler stopping")
	s.cancel()
	s.wg.Wait()
	s.cleanup.Stop()
	s.pool.Drain()
	s.logger.Info("Scheduler stopped")
}

// IsRunning reports whether the scheduler has been started
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}
