package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/reviewpilot/reviewpilot/internal/model"
)

// TaskStore defines operations for the durable task queue.
//
// The queue table is the single coordination point between the event
// router (producers) and the scheduler (consumer), so every state
// transition here is a conditional update guarded by the current status.
type TaskStore interface {
	// Enqueue inserts a task unless a pending task for the same merge
	// request already exists. It returns the stored task and whether a
	// new row was created.
	Enqueue(task *model.QueueTask) (*model.QueueTask, bool, error)

	// Dequeue atomically claims the most urgent eligible pending task
	// for the given worker, ordered by (priority ascending, created_at
	// ascending); a lower priority value is more urgent. Returns
	// gorm.ErrRecordNotFound when no task is eligible.
	Dequeue(workerID string) (*model.QueueTask, error)

	// ReleaseLock returns a running task to pending without touching
	// its attempt counter. Used for stuck-task recovery.
	ReleaseLock(id string) error

	// MarkCompleted finishes a task successfully and clears its lock.
	MarkCompleted(id string) error

	// MarkFailed records a failure. When nextRetryAt is non-nil the task
	// goes back to pending with an incremented attempt number and the
	// given eligibility time; otherwise it is failed terminally.
	MarkFailed(id, errType, errMsg string, nextRetryAt *time.Time) error

	// Cancel cancels a task that has not started running yet.
	Cancel(id string) error

	// ResetForRetry puts a terminally failed task back to pending with a
	// fresh attempt budget. Used by the manual retry endpoint.
	ResetForRetry(id string) error

	// GetStuck returns running tasks whose lock is older than timeout.
	GetStuck(timeout time.Duration) ([]model.QueueTask, error)

	// CleanupOld deletes completed tasks older than retentionDays and
	// returns the number of rows removed.
	CleanupOld(retentionDays int) (int64, error)

	// Stats returns the number of tasks per status.
	Stats() (map[model.TaskStatus]int64, error)

	// Queries
	GetByID(id string) (*model.QueueTask, error)
	GetPendingByProjectAndMR(projectID string, mrIID int64) (*model.QueueTask, error)
	List(statusFilter string, limit, offset int) ([]model.QueueTask, int64, error)
	CountByStatus(status model.TaskStatus) (int64, error)

	// UpdateReviewID links a task to the review it created or reused.
	UpdateReviewID(id, reviewID string) error
}

// taskStore implements TaskStore using GORM.
type taskStore struct {
	db *gorm.DB
}

func newTaskStore(db *gorm.DB) TaskStore {
	return &taskStore{db: db}
}

func (s *taskStore) Enqueue(task *model.QueueTask) (*model.QueueTask, bool, error) {
	var stored *model.QueueTask
	created := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing model.QueueTask
		err := tx.Where("project_id = ? AND mr_iid = ? AND status = ?",
			task.ProjectID, task.MRIID, model.TaskStatusPending).
			First(&existing).Error
		if err == nil {
			stored = &existing
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		if task.ScheduledAt.IsZero() {
			task.ScheduledAt = time.Now()
		}
		if err := tx.Create(task).Error; err != nil {
			return err
		}
		stored = task
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (s *taskStore) Dequeue(workerID string) (*model.QueueTask, error) {
	now := time.Now()

	// Candidate scan plus a conditional claim. The claim update only
	// succeeds if the row is still pending, so two concurrent schedulers
	// cannot run the same task.
	var candidates []model.QueueTask
	err := s.db.Where("status = ? AND scheduled_at <= ?", model.TaskStatusPending, now).
		Order("priority ASC, created_at ASC").
		Limit(10).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		result := s.db.Model(&model.QueueTask{}).
			Where("id = ? AND status = ?", candidates[i].ID, model.TaskStatusPending).
			Updates(map[string]interface{}{
				"status":    model.TaskStatusRunning,
				"locked_at": now,
				"locked_by": workerID,
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected > 0 {
			return s.GetByID(candidates[i].ID)
		}
		// Claimed by someone else between scan and update; try the next one.
	}

	return nil, gorm.ErrRecordNotFound
}

func (s *taskStore) ReleaseLock(id string) error {
	return s.db.Model(&model.QueueTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusRunning).
		Updates(map[string]interface{}{
			"status":    model.TaskStatusPending,
			"locked_at": nil,
			"locked_by": "",
		}).Error
}

func (s *taskStore) MarkCompleted(id string) error {
	return s.db.Model(&model.QueueTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":    model.TaskStatusCompleted,
			"locked_at": nil,
			"locked_by": "",
		}).Error
}

func (s *taskStore) MarkFailed(id, errType, errMsg string, nextRetryAt *time.Time) error {
	updates := map[string]interface{}{
		"locked_at":          nil,
		"locked_by":          "",
		"last_error_type":    errType,
		"last_error_message": errMsg,
	}
	if nextRetryAt != nil {
		updates["status"] = model.TaskStatusPending
		updates["scheduled_at"] = *nextRetryAt
		updates["attempt_number"] = gorm.Expr("attempt_number + 1")
	} else {
		updates["status"] = model.TaskStatusFailed
	}
	return s.db.Model(&model.QueueTask{}).Where("id = ?", id).Updates(updates).Error
}

func (s *taskStore) Cancel(id string) error {
	result := s.db.Model(&model.QueueTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusPending).
		Update("status", model.TaskStatusCancelled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *taskStore) ResetForRetry(id string) error {
	result := s.db.Model(&model.QueueTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusFailed).
		Updates(map[string]interface{}{
			"status":         model.TaskStatusPending,
			"scheduled_at":   time.Now(),
			"attempt_number": 1,
			"trigger_source": model.TriggerSourceRetry,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *taskStore) GetStuck(timeout time.Duration) ([]model.QueueTask, error) {
	cutoff := time.Now().Add(-timeout)
	var tasks []model.QueueTask
	err := s.db.Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?",
		model.TaskStatusRunning, cutoff).
		Find(&tasks).Error
	return tasks, err
}

func (s *taskStore) CleanupOld(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("status = ? AND updated_at < ?", model.TaskStatusCompleted, cutoff).
		Delete(&model.QueueTask{})
	return result.RowsAffected, result.Error
}

func (s *taskStore) Stats() (map[model.TaskStatus]int64, error) {
	type row struct {
		Status model.TaskStatus
		Count  int64
	}
	var rows []row
	err := s.db.Model(&model.QueueTask{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := map[model.TaskStatus]int64{
		model.TaskStatusPending:   0,
		model.TaskStatusRunning:   0,
		model.TaskStatusCompleted: 0,
		model.TaskStatusFailed:    0,
		model.TaskStatusCancelled: 0,
	}
	for _, r := range rows {
		stats[r.Status] = r.Count
	}
	return stats, nil
}

func (s *taskStore) GetByID(id string) (*model.QueueTask, error) {
	var task model.QueueTask
	err := s.db.First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *taskStore) GetPendingByProjectAndMR(projectID string, mrIID int64) (*model.QueueTask, error) {
	var task model.QueueTask
	err := s.db.Where("project_id = ? AND mr_iid = ? AND status = ?",
		projectID, mrIID, model.TaskStatusPending).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *taskStore) List(statusFilter string, limit, offset int) ([]model.QueueTask, int64, error) {
	var tasks []model.QueueTask
	var total int64

	query := s.db.Model(&model.QueueTask{})
	if statusFilter != "" {
		query = query.Where("status = ?", statusFilter)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&tasks).Error
	return tasks, total, err
}

func (s *taskStore) CountByStatus(status model.TaskStatus) (int64, error) {
	var count int64
	err := s.db.Model(&model.QueueTask{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (s *taskStore) UpdateReviewID(id, reviewID string) error {
	return s.db.Model(&model.QueueTask{}).Where("id = ?", id).Update("review_id", reviewID).Error
}
