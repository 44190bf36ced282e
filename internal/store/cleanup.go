// Package store provides data access operations for all models.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/reviewpilot/reviewpilot/pkg/logger"
)

const (
	// DefaultRetentionDays is the default number of days to retain
	// completed tasks and review logs
	DefaultRetentionDays = 30
)

// CleanupService periodically removes completed tasks and review logs
// that are older than the retention window.
type CleanupService struct {
	store         Store
	cron          *cron.Cron
	interval      time.Duration
	retentionDays int
	mu            sync.Mutex
}

// NewCleanupService creates a cleanup service running every interval.
func NewCleanupService(store Store, interval time.Duration, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if interval <= 0 {
		interval = time.Hour
	}

	return &CleanupService{
		store:         store,
		cron:          cron.New(),
		interval:      interval,
		retentionDays: retentionDays,
	}
}

// Start schedules the periodic cleanup job.
func (s *CleanupService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.cleanup); err != nil {
		logger.Error("Failed to schedule cleanup", zap.Error(err))
		return err
	}

	s.cron.Start()

	logger.Info("Cleanup service started",
		zap.Duration("interval", s.interval),
		zap.Int("retention_days", s.retentionDays),
	)

	// Run initial cleanup immediately (non-blocking)
	go s.cleanup()

	return nil
}

// Stop stops the cleanup service gracefully.
func (s *CleanupService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		logger.Info("Cleanup service stopped")
	}
}

// cleanup removes completed tasks and review logs past the retention window.
func (s *CleanupService) cleanup() {
	startTime := time.Now()

	deletedTasks, err := s.store.Task().CleanupOld(s.retentionDays)
	if err != nil {
		logger.Error("Failed to cleanup old tasks",
			zap.Int("retention_days", s.retentionDays),
			zap.Error(err),
		)
		return
	}

	deletedLogs, err := s.store.Review().DeleteLogsOlderThan(s.retentionDays)
	if err != nil {
		logger.Error("Failed to cleanup old review logs",
			zap.Int("retention_days", s.retentionDays),
			zap.Error(err),
		)
		return
	}

	logger.Info("Cleanup completed",
		zap.Int64("deleted_tasks", deletedTasks),
		zap.Int64("deleted_logs", deletedLogs),
		zap.Int("retention_days", s.retentionDays),
		zap.Duration("duration", time.Since(startTime)),
	)
}
