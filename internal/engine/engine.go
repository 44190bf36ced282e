package engine

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/reviewpilot/reviewpilot/internal/llm"
	"github.com/reviewpilot/reviewpilot/internal/model"
	"github.com/reviewpilot/reviewpilot/internal/platform"
	"github.com/reviewpilot/reviewpilot/internal/review"
	"github.com/reviewpilot/reviewpilot/internal/store"
	"github.com/reviewpilot/reviewpilot/pkg/errors"
	"github.com/reviewpilot/reviewpilot/pkg/idgen"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
	"github.com/reviewpilot/reviewpilot/pkg/metrics"
)

// Config aggregates the engine's immutable settings
type Config struct {
	Scheduler SchedulerConfig
	Review    review.Config
	Analyzer  review.AnalyzerConfig
}

// Engine owns the review pipeline: the scheduler, worker pool, and
// orchestrator, plus the enqueue paths that feed them.
type Engine struct {
	store     store.Store
	pool      *WorkerPool
	scheduler *Scheduler
	metrics   *metrics.Metrics
	workerID  string
	cfg       Config
	logger    *zap.Logger
}

// Stats is the operational snapshot exposed by the stats endpoint
type Stats struct {
	Queue       map[model.TaskStatus]int64 `json:"queue"`
	Pool        PoolStats                  `json:"pool"`
	Utilization float64                    `json:"utilization"`
}

// New wires the engine. m may be nil in tests.
func New(s store.Store, platformClient platform.Client, provider llm.Provider, m *metrics.Metrics, cfg Config) *Engine {
	workerID := workerIdentity()

	analyzer := review.NewAnalyzer(provider, cfg.Analyzer)
	orchestrator := review.NewOrchestrator(platformClient, analyzer, s, m, cfg.Review)
	executor := NewExecutor(s, orchestrator)
	pool := NewWorkerPool(cfg.Scheduler.MaxConcurrentTasks, workerID, m)
	scheduler := NewScheduler(s, pool, executor, workerID, cfg.Scheduler, m)

	return &Engine{
		store:     s,
		pool:      pool,
		scheduler: scheduler,
		metrics:   m,
		workerID:  workerID,
		cfg:       cfg,
		logger:    logger.Named("engine"),
	}
}

// workerIdentity builds a worker id unique per process
func workerIdentity() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, idgen.NewID())
}

// Start recovers tasks orphaned by a previous process and begins
// scheduling.
func (e *Engine) Start() {
	e.recoverOrphanedTasks()
	e.scheduler.Start()
	e.logger.Info("Engine started", zap.String("worker_id", e.workerID))
}

// Stop halts scheduling and drains in-flight reviews
func (e *Engine) Stop() {
	e.scheduler.Stop()
	e.logger.Info("Engine stopped")
}

// recoverOrphanedTasks releases every running lock at boot. A fresh
// process has no in-flight work, so any running row belongs to a dead
// worker.
func (e *Engine) recoverOrphanedTasks() {
	orphaned, err := e.store.Task().GetStuck(0)
	if err != nil {
		e.logger.Error("Failed to query orphaned tasks", zap.Error(err))
		return
	}
	for _, task := range orphaned {
		if err := e.store.Task().ReleaseLock(task.ID); err != nil {
			e.logger.Error("Failed to release orphaned task",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}
		e.logger.Warn("Released task orphaned by previous run",
			zap.String("task_id", task.ID),
			zap.String("locked_by", task.LockedBy),
		)
	}
}

// EnqueueFromEvent routes a merge request change notification into the
// task queue. Actions that do not warrant a review are ignored and
// return a nil task.
func (e *Engine) EnqueueFromEvent(event *platform.WebhookEvent) (*model.QueueTask, bool, error) {
	if event.Kind != platform.EventKindMergeRequest {
		return nil, false, errors.New(errors.ErrCodeWebhookPayload,
			fmt.Sprintf("unsupported event kind: %s", event.Kind))
	}
	if !platform.ShouldTriggerReview(event.Action) {
		e.logger.Debug("Ignoring merge request action",
			zap.String("project", event.ProjectID),
			zap.Int64("mr_iid", event.MRIID),
			zap.String("action", event.Action),
		)
		return nil, false, nil
	}

	task := &model.QueueTask{
		ID:            idgen.NewTaskID(),
		ProjectID:     event.ProjectID,
		MRIID:         event.MRIID,
		MRTitle:       event.Title,
		MRDescription: event.Description,
		MRAuthor:      event.Author,
		SourceBranch:  event.SourceBranch,
		TargetBranch:  event.TargetBranch,
		Status:        model.TaskStatusPending,
		ScheduledAt:   time.Now(),
		AttemptNumber: 1,
		MaxRetries:    e.cfg.Scheduler.Policy.MaxRetries,
		TriggerSource: model.TriggerSourceWebhook,
		TriggerEvent:  event.Action,
	}
	return e.enqueue(task, model.TriggerSourceWebhook)
}

// EnqueueManual queues a review requested through the API
func (e *Engine) EnqueueManual(projectID string, mrIID int64) (*model.QueueTask, bool, error) {
	task := &model.QueueTask{
		ID:            idgen.NewTaskID(),
		ProjectID:     projectID,
		MRIID:         mrIID,
		Status:        model.TaskStatusPending,
		ScheduledAt:   time.Now(),
		AttemptNumber: 1,
		MaxRetries:    e.cfg.Scheduler.Policy.MaxRetries,
		TriggerSource: model.TriggerSourceManual,
	}
	return e.enqueue(task, model.TriggerSourceManual)
}

func (e *Engine) enqueue(task *model.QueueTask, source string) (*model.QueueTask, bool, error) {
	stored, created, err := e.store.Task().Enqueue(task)
	if err != nil {
		return nil, false, err
	}
	if created {
		if e.metrics != nil {
			e.metrics.TasksEnqueued.WithLabelValues(source).Inc()
		}
		e.logger.Info("Task enqueued",
			zap.String("task_id", stored.ID),
			zap.String("project", stored.ProjectID),
			zap.Int64("mr_iid", stored.MRIID),
			zap.String("source", source),
		)
	} else {
		e.logger.Info("Reusing pending task for merge request",
			zap.String("task_id", stored.ID),
			zap.String("project", stored.ProjectID),
			zap.Int64("mr_iid", stored.MRIID),
		)
	}
	return stored, created, nil
}

// CancelTask cancels a pending task
func (e *Engine) CancelTask(taskID string) error {
	return e.store.Task().Cancel(taskID)
}

// RetryTask resets a failed task for another run
func (e *Engine) RetryTask(taskID string) error {
	return e.store.Task().ResetForRetry(taskID)
}

// Stats returns queue counts and worker utilization
func (e *Engine) Stats() (*Stats, error) {
	queue, err := e.store.Task().Stats()
	if err != nil {
		return nil, err
	}
	pool := e.pool.Stats()

	utilization := 0.0
	if pool.MaxConcurrent > 0 {
		utilization = float64(pool.Running) / float64(pool.MaxConcurrent)
	}
	return &Stats{
		Queue:       queue,
		Pool:        pool,
		Utilization: utilization,
	}, nil
}

// WorkerID returns this process's worker identity
func (e *Engine) WorkerID() string {
	return e.workerID
}
