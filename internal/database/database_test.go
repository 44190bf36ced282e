package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpilot/reviewpilot/internal/model"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
)

func TestSQLiteOptimizations(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	err := InitWithPath(dbPath)
	require.NoError(t, err)
	defer Close()

	db := Get()

	// Check journal_mode (should be WAL)
	var journalMode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	assert.Equal(t, "wal", journalMode)

	// Check synchronous (should be 1 for NORMAL)
	var synchronous int
	require.NoError(t, db.Raw("PRAGMA synchronous").Scan(&synchronous).Error)
	assert.Equal(t, 1, synchronous)

	// Check foreign_keys (should be ON)
	var foreignKeys int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&foreignKeys).Error)
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrationCreatesTables(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	err := InitWithPath(dbPath)
	require.NoError(t, err)
	defer Close()

	db := Get()

	for _, table := range []string{"queue_tasks", "reviews", "review_logs"} {
		assert.True(t, db.Migrator().HasTable(table), "table %s should exist", table)
	}

	// Write through the models to verify the schema is usable
	task := &model.QueueTask{
		ID:        "tsk-migration-test-01",
		ProjectID: "group/project",
		MRIID:     1,
		Status:    model.TaskStatusPending,
	}
	require.NoError(t, db.Create(task).Error)

	var count int64
	require.NoError(t, db.Model(&model.QueueTask{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHealthCheck(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	require.NoError(t, InitWithPath(dbPath))
	defer Close()

	assert.NoError(t, HealthCheck())
}

func TestInitIsIdempotent(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	require.NoError(t, InitWithPath(dbPath))
	defer Close()

	// Second call is a no-op
	require.NoError(t, InitWithPath(filepath.Join(tmpDir, "other.db")))
	assert.NotNil(t, Get())
}
