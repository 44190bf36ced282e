package model

import (
	"time"
)

// ReviewStatus represents the status of a review
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusRunning   ReviewStatus = "running"
	ReviewStatusCompleted ReviewStatus = "completed"
	ReviewStatusFailed    ReviewStatus = "failed"
)

// Review represents one review of a merge request. A retried task reuses
// its linked review row rather than creating a new one, so RetryCount
// reflects how many times the review has been re-run.
type Review struct {
	ID        string    `gorm:"primarykey;size:20" json:"id"` // xid
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Merge request identification
	ProjectID string `gorm:"size:255;not null;index:idx_review_project_mr" json:"project_id"`
	MRIID     int64  `gorm:"column:mr_iid;not null;index:idx_review_project_mr" json:"mr_iid"`

	// CommitSHA is the head revision the review ran against
	CommitSHA string `gorm:"size:64" json:"commit_sha,omitempty"`

	// Status and progress
	Status      ReviewStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	TriggeredBy string       `gorm:"size:50" json:"triggered_by,omitempty"`
	RetryCount  int          `gorm:"default:0;not null" json:"retry_count"`

	// Timing
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    int64      `json:"duration,omitempty"` // milliseconds

	// Error handling
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	// Relations
	Logs []ReviewLog `gorm:"foreignKey:ReviewID" json:"logs,omitempty"`
}

// LogKind discriminates review log rows
type LogKind string

const (
	LogKindResult LogKind = "result"
	LogKindError  LogKind = "error"
)

// ReviewLog is an append-only record of a review outcome. Result rows
// capture what the analyzer produced; error rows capture why a run failed.
type ReviewLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Association
	ReviewID string  `gorm:"size:20;not null;index" json:"review_id"` // xid reference
	Kind     LogKind `gorm:"size:20;not null;index" json:"kind"`

	// Result fields
	Provider       string `gorm:"size:100" json:"provider,omitempty"`
	Model          string `gorm:"size:255" json:"model,omitempty"`
	Summary        string `gorm:"type:text" json:"summary,omitempty"`
	CommentsFound  int    `gorm:"default:0" json:"comments_found"`
	CommentsPosted int    `gorm:"default:0" json:"comments_posted"`
	DurationMs     int64  `json:"duration_ms,omitempty"`

	// Payload stores the structured analyzer output (comments, counts)
	Payload JSONMap `gorm:"type:json" json:"payload,omitempty"`

	// Error fields
	ErrorType    string `gorm:"size:50" json:"error_type,omitempty"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`
	Retryable    bool   `gorm:"default:false" json:"retryable"`
}
