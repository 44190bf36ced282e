package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/reviewpilot/reviewpilot/internal/model"
)

// ReviewStore defines operations for Review and ReviewLog models.
type ReviewStore interface {
	// Review CRUD
	Create(review *model.Review) error
	GetByID(id string) (*model.Review, error)
	GetByIDWithLogs(id string) (*model.Review, error)
	Save(review *model.Review) error

	// Review status updates
	UpdateStatus(id string, status model.ReviewStatus) error
	UpdateStatusWithError(id string, status model.ReviewStatus, errMsg string) error

	// ResetForRun prepares a review for a fresh execution: status goes to
	// running, the start time is recorded and the previous error cleared.
	// When rerun is true the retry counter is incremented.
	ResetForRun(id, commitSHA string, startedAt time.Time, rerun bool) error

	// Finish closes out a run with its final status and duration.
	Finish(id string, status model.ReviewStatus, errMsg string, completedAt time.Time) error

	// Review queries
	List(statusFilter string, limit, offset int) ([]model.Review, int64, error)
	GetLatestByProjectAndMR(projectID string, mrIID int64) (*model.Review, error)

	// ReviewLog operations
	CreateLog(log *model.ReviewLog) error
	GetLogsByReviewID(reviewID string) ([]model.ReviewLog, error)
	DeleteLogsOlderThan(retentionDays int) (int64, error)
}

// reviewStore implements ReviewStore using GORM.
type reviewStore struct {
	db *gorm.DB
}

func newReviewStore(db *gorm.DB) ReviewStore {
	return &reviewStore{db: db}
}

func (s *reviewStore) Create(review *model.Review) error {
	return s.db.Create(review).Error
}

func (s *reviewStore) GetByID(id string) (*model.Review, error) {
	var review model.Review
	err := s.db.First(&review, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *reviewStore) GetByIDWithLogs(id string) (*model.Review, error) {
	var review model.Review
	err := s.db.Preload("Logs").First(&review, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *reviewStore) Save(review *model.Review) error {
	return s.db.Save(review).Error
}

func (s *reviewStore) UpdateStatus(id string, status model.ReviewStatus) error {
	return s.db.Model(&model.Review{}).Where("id = ?", id).Update("status", status).Error
}

func (s *reviewStore) UpdateStatusWithError(id string, status model.ReviewStatus, errMsg string) error {
	return s.db.Model(&model.Review{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        status,
		"error_message": errMsg,
	}).Error
}

func (s *reviewStore) ResetForRun(id, commitSHA string, startedAt time.Time, rerun bool) error {
	updates := map[string]interface{}{
		"status":        model.ReviewStatusRunning,
		"commit_sha":    commitSHA,
		"started_at":    startedAt,
		"completed_at":  nil,
		"duration":      0,
		"error_message": "",
	}
	if rerun {
		updates["retry_count"] = gorm.Expr("retry_count + 1")
	}
	return s.db.Model(&model.Review{}).Where("id = ?", id).Updates(updates).Error
}

func (s *reviewStore) Finish(id string, status model.ReviewStatus, errMsg string, completedAt time.Time) error {
	var review model.Review
	if err := s.db.First(&review, "id = ?", id).Error; err != nil {
		return err
	}

	var duration int64
	if review.StartedAt != nil {
		duration = completedAt.Sub(*review.StartedAt).Milliseconds()
	}

	return s.db.Model(&model.Review{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        status,
		"error_message": errMsg,
		"completed_at":  completedAt,
		"duration":      duration,
	}).Error
}

func (s *reviewStore) List(statusFilter string, limit, offset int) ([]model.Review, int64, error) {
	var reviews []model.Review
	var total int64

	query := s.db.Model(&model.Review{})
	if statusFilter != "" {
		query = query.Where("status = ?", statusFilter)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&reviews).Error
	return reviews, total, err
}

func (s *reviewStore) GetLatestByProjectAndMR(projectID string, mrIID int64) (*model.Review, error) {
	var review model.Review
	err := s.db.Where("project_id = ? AND mr_iid = ?", projectID, mrIID).
		Order("created_at DESC").
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *reviewStore) CreateLog(log *model.ReviewLog) error {
	return s.db.Create(log).Error
}

func (s *reviewStore) GetLogsByReviewID(reviewID string) ([]model.ReviewLog, error) {
	var logs []model.ReviewLog
	err := s.db.Where("review_id = ?", reviewID).Order("created_at ASC").Find(&logs).Error
	return logs, err
}

func (s *reviewStore) DeleteLogsOlderThan(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&model.ReviewLog{})
	return result.RowsAffected, result.Error
}
