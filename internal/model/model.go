// Package model defines the data models for the application.
// All models use GORM for ORM operations with SQLite database.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// StringArray is a custom type for storing string arrays in SQLite
type StringArray []string

// Value implements driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, s)
}

// JSONMap is a custom type for storing JSON maps in SQLite
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, j)
}

// TaskStatus represents the lifecycle state of a queue task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Trigger sources for queue tasks
const (
	TriggerSourceWebhook = "webhook"
	TriggerSourceManual  = "manual"
	TriggerSourceRetry   = "retry"
)

// QueueTask is a durable unit of review work for one merge request revision.
// Tasks survive process restarts; the scheduler claims them with a
// conditional update so that at most one worker runs a given task.
type QueueTask struct {
	ID        string    `gorm:"primarykey;size:20" json:"id"` // xid
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Merge request identification
	ProjectID string `gorm:"size:255;not null;index:idx_project_mr" json:"project_id"`
	MRIID     int64  `gorm:"column:mr_iid;not null;index:idx_project_mr" json:"mr_iid"`

	// Denormalized MR metadata captured at enqueue time so the executor
	// does not need a platform round-trip to build prompts
	MRTitle       string `gorm:"size:512" json:"mr_title,omitempty"`
	MRDescription string `gorm:"type:text" json:"mr_description,omitempty"`
	MRAuthor      string `gorm:"size:255" json:"mr_author,omitempty"`
	SourceBranch  string `gorm:"size:255" json:"source_branch,omitempty"`
	TargetBranch  string `gorm:"size:255" json:"target_branch,omitempty"`

	// Scheduling
	Status      TaskStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	Priority    int        `gorm:"default:0" json:"priority"` // lower value = more urgent
	ScheduledAt time.Time  `gorm:"index" json:"scheduled_at"` // not eligible for dequeue before this time

	// Claim bookkeeping
	LockedAt *time.Time `json:"locked_at,omitempty"`
	LockedBy string     `gorm:"size:64" json:"locked_by,omitempty"`

	// Retry bookkeeping. AttemptNumber counts the execution about to run
	// or currently running, starting at 1.
	AttemptNumber int `gorm:"default:1;not null" json:"attempt_number"`
	MaxRetries    int `gorm:"default:3;not null" json:"max_retries"`

	// Trigger provenance
	TriggerSource string `gorm:"size:50" json:"trigger_source,omitempty"`
	TriggerEvent  string `gorm:"size:255" json:"trigger_event,omitempty"`

	// Last failure, kept for inspection across retries
	LastErrorType    string `gorm:"size:50" json:"last_error_type,omitempty"`
	LastErrorMessage string `gorm:"type:text" json:"last_error_message,omitempty"`

	// ReviewID links the task to the Review it created or reused
	ReviewID string `gorm:"size:20;index" json:"review_id,omitempty"`
}

// AllModels returns all models for auto-migration
func AllModels() []interface{} {
	return []interface{}{
		&QueueTask{},
		&Review{},
		&ReviewLog{},
	}
}
