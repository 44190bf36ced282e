package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/reviewpilot/reviewpilot/internal/model"
)

// TestTaskStore_Enqueue tests basic enqueue behavior
func TestTaskStore_Enqueue(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	task := &model.QueueTask{
		ID:            "tsk-enqueue-001",
		ProjectID:     "group/project",
		MRIID:         7,
		Status:        model.TaskStatusPending,
		AttemptNumber: 1,
		MaxRetries:    3,
	}

	stored, created, err := store.Task().Enqueue(task)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "tsk-enqueue-001", stored.ID)
	assert.False(t, stored.ScheduledAt.IsZero(), "enqueue should default scheduled_at")
}

// TestTaskStore_Enqueue_DedupesPending tests that a second enqueue for the
// same merge request returns the existing pending task
func TestTaskStore_Enqueue_DedupesPending(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	first := CreateTestTask(t, store)

	dup := &model.QueueTask{
		ID:        "tsk-enqueue-dup",
		ProjectID: first.ProjectID,
		MRIID:     first.MRIID,
		Status:    model.TaskStatusPending,
	}

	stored, created, err := store.Task().Enqueue(dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, stored.ID)

	// Only one row exists
	count, err := store.Task().CountByStatus(model.TaskStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// TestTaskStore_Enqueue_AllowsNewAfterCompletion tests that deduplication
// only considers pending tasks
func TestTaskStore_Enqueue_AllowsNewAfterCompletion(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	first := CreateTestTask(t, store)
	require.NoError(t, store.Task().MarkCompleted(first.ID))

	next := &model.QueueTask{
		ID:        "tsk-enqueue-next",
		ProjectID: first.ProjectID,
		MRIID:     first.MRIID,
		Status:    model.TaskStatusPending,
	}

	_, created, err := store.Task().Enqueue(next)
	require.NoError(t, err)
	assert.True(t, created)
}

// TestTaskStore_Dequeue tests claiming a pending task
func TestTaskStore_Dequeue(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	task := CreateTestTask(t, store)

	claimed, err := store.Task().Dequeue("worker-1")
	require.NoError(t, err)
	assert.Equal(t, task.ID, claimed.ID)
	assert.Equal(t, model.TaskStatusRunning, claimed.Status)
	assert.Equal(t, "worker-1", claimed.LockedBy)
	require.NotNil(t, claimed.LockedAt)
}

// TestTaskStore_Dequeue_Empty tests dequeue against an empty queue
func TestTaskStore_Dequeue_Empty(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	_, err := store.Task().Dequeue("worker-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestTaskStore_Dequeue_SkipsFutureScheduled tests that tasks scheduled in
// the future are not eligible
func TestTaskStore_Dequeue_SkipsFutureScheduled(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	CreateTestTask(t, store, func(task *model.QueueTask) {
		task.ScheduledAt = time.Now().Add(time.Hour)
	})

	_, err := store.Task().Dequeue("worker-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestTaskStore_Dequeue_PriorityOrder tests that a lower priority value
// is claimed first regardless of insertion order
func TestTaskStore_Dequeue_PriorityOrder(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	CreateTestTask(t, store, func(task *model.QueueTask) {
		task.ID = "tsk-deferred"
		task.MRIID = 1
		task.Priority = 5
	})
	CreateTestTask(t, store, func(task *model.QueueTask) {
		task.ID = "tsk-urgent"
		task.MRIID = 2
		task.Priority = 1
	})

	claimed, err := store.Task().Dequeue("worker-1")
	require.NoError(t, err)
	assert.Equal(t, "tsk-urgent", claimed.ID)

	claimed, err = store.Task().Dequeue("worker-1")
	require.NoError(t, err)
	assert.Equal(t, "tsk-deferred", claimed.ID)
}

// TestTaskStore_Dequeue_MutualExclusion tests that a claimed task cannot
// be claimed again
func TestTaskStore_Dequeue_MutualExclusion(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	CreateTestTask(t, store)

	_, err := store.Task().Dequeue("worker-1")
	require.NoError(t, err)

	_, err = store.Task().Dequeue("worker-2")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestTaskStore_ReleaseLock tests stuck-task recovery semantics
func TestTaskStore_ReleaseLock(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	task := CreateTestTask(t, store)
	claimed, err := store.Task().Dequeue("worker-1")
	require.NoError(t, err)

	require.NoError(t, store.Task().ReleaseLock(claimed.ID))

	released, err := store.Task().GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, released.Status)
	assert.Nil(t, released.LockedAt)
	assert.Empty(t, released.LockedBy)
	// Attempt counter unchanged: a recovered task is not a retry
	assert.Equal(t, claimed.AttemptNumber, released.AttemptNumber)
}

// TestTaskStore_MarkCompleted tests terminal success
func TestTaskStore_MarkCompleted(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	task := CreateTestTask(t, store)
	_, err := store.Task().Dequeue("worker-1")
	require.NoError(t, err)

	require.NoError(t, store.Task().MarkCompleted(task.ID))

	done, err := store.Task().GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, done.Status)
	assert.Nil(t, done.LockedAt)
	assert.Empty(t, done.LockedBy)
}

// TestTaskStore_MarkFailed_WithRetry tests re-scheduling on retryable failure
func TestTaskStore_MarkFailed_WithRetry(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	task := CreateTestTask(t, store)
	_, err := store.Task().Dequeue("worker-1")
	require.NoError(t, err)

	nextRetry := time.Now().Add(30 * time.Second)
	require.NoError(t, store.Task().MarkFailed(task.ID, "transient", "connection reset", &nextRetry))

	failed, err := store.Task().GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, failed.Status)
	assert.Equal(t, 2, failed.AttemptNumber)
	assert.Equal(t, "transient", failed.LastErrorType)
	assert.Equal(t, "connection reset", failed.LastErrorMessage)
	assert.WithinDuration(t, nextRetry, failed.ScheduledAt, time.Second)
	assert.Nil(t, failed.LockedAt)

	// Not eligible until the backoff elapses
	_, err = store.Task().Dequeue("worker-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestTaskStore_MarkFailed_Terminal tests terminal failure
func TestTaskStore_MarkFailed_Terminal(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	task := CreateTestTask(t, store)
	_, err := store.Task().Dequeue("worker-1")
	require.NoError(t, err)

	require.NoError(t, store.Task().MarkFailed(task.ID, "permanent", "invalid credentials", nil))

	failed, err := store.Task().GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, failed.Status)
	assert.Equal(t, 1, failed.AttemptNumber, "terminal failure should not increment attempt")
	assert.Equal(t, "permanent", failed.LastErrorType)
}

// TestTaskStore_Cancel tests cancelling a pending task
func TestTaskStore_Cancel(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	task := CreateTestTask(t, store)
	require.NoError(t, store.Task().Cancel(task.ID))

	cancelled, err := store.Task().GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, cancelled.Status)
}

// TestTaskStore_Cancel_RunningFails tests that a running task cannot be cancelled
func TestTaskStore_Cancel_RunningFails(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	task := CreateTestTask(t, store)
	_, err := store.Task().Dequeue("worker-1")
	require.NoError(t, err)

	err = store.Task().Cancel(task.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestTaskStore_ResetForRetry tests the manual retry path
func TestTaskStore_ResetForRetry(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	task := CreateTestTask(t, store)
	_, err := store.Task().Dequeue("worker-1")
	require.NoError(t, err)
	require.NoError(t, store.Task().MarkFailed(task.ID, "permanent", "bad schema", nil))

	require.NoError(t, store.Task().ResetForRetry(task.ID))

	reset, err := store.Task().GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, reset.Status)
	assert.Equal(t, 1, reset.AttemptNumber)
	assert.Equal(t, model.TriggerSourceRetry, reset.TriggerSource)
}

// TestTaskStore_GetStuck tests stale lock detection
func TestTaskStore_GetStuck(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	task := CreateTestTask(t, store)
	_, err := store.Task().Dequeue("worker-1")
	require.NoError(t, err)

	// Fresh lock: not stuck
	stuck, err := store.Task().GetStuck(10 * time.Minute)
	require.NoError(t, err)
	assert.Empty(t, stuck)

	// Age the lock past the timeout
	old := time.Now().Add(-time.Hour)
	require.NoError(t, store.DB().Model(&model.QueueTask{}).
		Where("id = ?", task.ID).
		Update("locked_at", old).Error)

	stuck, err = store.Task().GetStuck(10 * time.Minute)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, task.ID, stuck[0].ID)
}

// TestTaskStore_CleanupOld tests retention sweep scoping
func TestTaskStore_CleanupOld(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	completed := CreateTestTask(t, store, func(task *model.QueueTask) {
		task.ID = "tsk-old-completed"
		task.MRIID = 1
		task.Status = model.TaskStatusCompleted
	})
	failed := CreateTestTask(t, store, func(task *model.QueueTask) {
		task.ID = "tsk-old-failed"
		task.MRIID = 2
		task.Status = model.TaskStatusFailed
	})

	// Age both rows past the retention window
	old := time.Now().AddDate(0, 0, -60)
	for _, id := range []string{completed.ID, failed.ID} {
		require.NoError(t, store.DB().Model(&model.QueueTask{}).
			Where("id = ?", id).
			Update("updated_at", old).Error)
	}

	deleted, err := store.Task().CleanupOld(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted, "only completed tasks are swept")

	_, err = store.Task().GetByID(completed.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Failed tasks are retained for inspection
	_, err = store.Task().GetByID(failed.ID)
	assert.NoError(t, err)
}

// TestTaskStore_Stats tests per-status counting
func TestTaskStore_Stats(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	CreateTestTask(t, store, func(task *model.QueueTask) {
		task.ID = "tsk-stats-1"
		task.MRIID = 1
	})
	CreateTestTask(t, store, func(task *model.QueueTask) {
		task.ID = "tsk-stats-2"
		task.MRIID = 2
	})
	CreateTestTask(t, store, func(task *model.QueueTask) {
		task.ID = "tsk-stats-3"
		task.MRIID = 3
		task.Status = model.TaskStatusCompleted
	})

	stats, err := store.Task().Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats[model.TaskStatusPending])
	assert.Equal(t, int64(1), stats[model.TaskStatusCompleted])
	assert.Equal(t, int64(0), stats[model.TaskStatusRunning])
	assert.Equal(t, int64(0), stats[model.TaskStatusFailed])
}

// TestTaskStore_UpdateReviewID tests linking a task to its review
func TestTaskStore_UpdateReviewID(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	task := CreateTestTask(t, store)
	require.NoError(t, store.Task().UpdateReviewID(task.ID, "rev-123"))

	updated, err := store.Task().GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "rev-123", updated.ReviewID)
}

// TestTaskStore_List tests listing with status filter
func TestTaskStore_List(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	CreateTestTask(t, store, func(task *model.QueueTask) {
		task.ID = "tsk-list-1"
		task.MRIID = 1
	})
	CreateTestTask(t, store, func(task *model.QueueTask) {
		task.ID = "tsk-list-2"
		task.MRIID = 2
		task.Status = model.TaskStatusFailed
	})

	tasks, total, err := store.Task().List("", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, tasks, 2)

	tasks, total, err = store.Task().List("failed", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tasks, 1)
	assert.Equal(t, "tsk-list-2", tasks[0].ID)
}
