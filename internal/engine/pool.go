// Package engine implements the review scheduling core: the worker
// pool, the task executor, and the polling scheduler that moves queued
// tasks through execution.
package engine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/reviewpilot/reviewpilot/internal/model"
	"github.com/reviewpilot/reviewpilot/pkg/errors"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
	"github.com/reviewpilot/reviewpilot/pkg/metrics"
)

// WorkerPool bounds concurrent task executions and tracks counters.
// Admission is a hard, non-blocking check: the scheduler is responsible
// for not over-submitting, the pool only enforces the ceiling.
type WorkerPool struct {
	mu sync.Mutex

	maxConcurrent int
	workerID      string

	// running tracks in-flight executions by task id
	running map[string]struct{}

	completed int64
	failed    int64

	wg      sync.WaitGroup
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// PoolStats is a snapshot of pool counters
type PoolStats struct {
	WorkerID      string `json:"worker_id"`
	MaxConcurrent int    `json:"max_concurrent"`
	Running       int    `json:"running"`
	Completed     int64  `json:"completed"`
	Failed        int64  `json:"failed"`
}

// NewWorkerPool creates a pool executing at most maxConcurrent tasks.
// m may be nil in tests.
func NewWorkerPool(maxConcurrent int, workerID string, m *metrics.Metrics) *WorkerPool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &WorkerPool{
		maxConcurrent: maxConcurrent,
		workerID:      workerID,
		running:       make(map[string]struct{}),
		metrics:       m,
		logger:        logger.Named("pool"),
	}
}

// Execute starts fn for the task asynchronously. fn reports whether the
// execution succeeded; the pool removes the task from the active set and
// updates counters regardless of outcome. Returns an error when the pool
// is at capacity or the task is already running.
func (p *WorkerPool) Execute(task *model.QueueTask, fn func(*model.QueueTask) bool) error {
	p.mu.Lock()
	if len(p.running) >= p.maxConcurrent {
		p.mu.Unlock()
		return errors.New(errors.ErrCodeQueueSaturate,
			fmt.Sprintf("worker pool at capacity (%d)", p.maxConcurrent))
	}
	if _, exists := p.running[task.ID]; exists {
		p.mu.Unlock()
		return errors.New(errors.ErrCodeTaskConflict,
			fmt.Sprintf("task %s is already executing", task.ID))
	}
	p.running[task.ID] = struct{}{}
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RunningTasks.Inc()
	}

	p.wg.Add(1)
	go func() {
		success := false
		defer func() {
			// A panicking execution is recorded as a failure; the
			// panic must not take down the process.
			if r := recover(); r != nil {
				p.logger.Error("Task execution panicked",
					zap.String("task_id", task.ID),
					zap.Any("panic", r),
				)
			}
			p.finish(task.ID, success)
			p.wg.Done()
		}()
		success = fn(task)
	}()

	return nil
}

// finish removes the task from the active set and updates counters
func (p *WorkerPool) finish(taskID string, success bool) {
	p.mu.Lock()
	delete(p.running, taskID)
	if success {
		p.completed++
	} else {
		p.failed++
	}
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RunningTasks.Dec()
		outcome := "failed"
		if success {
			outcome = "completed"
		}
		p.metrics.TasksProcessed.WithLabelValues(outcome).Inc()
	}
}

// RunningCount returns the number of in-flight executions
func (p *WorkerPool) RunningCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

// IsRunning reports whether the given task is currently executing
func (p *WorkerPool) IsRunning(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.running[taskID]
	return ok
}

// Stats returns a snapshot of the pool counters
func (p *WorkerPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		WorkerID:      p.workerID,
		MaxConcurrent: p.maxConcurrent,
		Running:       len(p.running),
		Completed:     p.completed,
		Failed:        p.failed,
	}
}

// Drain waits for all in-flight executions to complete. It never
// cancels them.
func (p *WorkerPool) Drain() {
	p.wg.Wait()
}
