// Package store provides test utilities for database testing.
package store

import (
	"os"
	"testing"
	"time"

	"github.com/reviewpilot/reviewpilot/internal/database"
	"github.com/reviewpilot/reviewpilot/internal/model"
	"github.com/reviewpilot/reviewpilot/pkg/idgen"
)

// SetupTestDB creates a temporary SQLite database for testing.
// It returns a Store instance and a cleanup function.
// The cleanup function should be called with defer in tests.
func SetupTestDB(t *testing.T) (Store, func()) {
	// Reset database state to allow re-initialization
	database.ResetForTesting()

	// Create temporary database file
	tmpFile, err := os.CreateTemp("", "test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	// Initialize database with temp path
	if err := database.InitWithPath(tmpPath); err != nil {
		os.Remove(tmpPath)
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	db := database.Get()
	store := NewStore(db)

	cleanup := func() {
		database.Close()
		database.ResetForTesting()
		os.Remove(tmpPath)
	}

	return store, cleanup
}

// CreateTestTask creates a test QueueTask with default values.
// Fields can be overridden by passing a function that modifies the task.
func CreateTestTask(t *testing.T, store Store, overrides ...func(*model.QueueTask)) *model.QueueTask {
	task := &model.QueueTask{
		ID:            idgen.NewTaskID(),
		ProjectID:     "group/project",
		MRIID:         42,
		MRTitle:       "Add rate limiter",
		MRAuthor:      "dev",
		SourceBranch:  "feature/rate-limiter",
		TargetBranch:  "main",
		Status:        model.TaskStatusPending,
		ScheduledAt:   time.Now().Add(-time.Second),
		AttemptNumber: 1,
		MaxRetries:    3,
		TriggerSource: model.TriggerSourceWebhook,
	}

	for _, override := range overrides {
		override(task)
	}

	if err := store.DB().Create(task).Error; err != nil {
		t.Fatalf("Failed to create test task: %v", err)
	}

	return task
}

// CreateTestReview creates a test Review with default values.
func CreateTestReview(t *testing.T, store Store, overrides ...func(*model.Review)) *model.Review {
	review := &model.Review{
		ID:          idgen.NewReviewID(),
		ProjectID:   "group/project",
		MRIID:       42,
		Status:      model.ReviewStatusPending,
		TriggeredBy: model.TriggerSourceWebhook,
	}

	for _, override := range overrides {
		override(review)
	}

	if err := store.Review().Create(review); err != nil {
		t.Fatalf("Failed to create test review: %v", err)
	}

	return review
}
