package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/reviewpilot/reviewpilot/internal/engine"
	"github.com/reviewpilot/reviewpilot/internal/store"
	pkgerrors "github.com/reviewpilot/reviewpilot/pkg/errors"
)

// TaskHandler handles queue task inspection and control
type TaskHandler struct {
	engine *engine.Engine
	store  store.Store
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(e *engine.Engine, s store.Store) *TaskHandler {
	return &TaskHandler{engine: e, store: s}
}

// ListTasks handles GET /api/v1/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	limit, offset := parsePagination(c)
	status := c.Query("status")

	tasks, total, err := h.store.Task().List(status, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, pkgerrors.ErrCodeDBQuery, "Failed to list tasks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":  tasks,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetTask handles GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.store.Task().GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, pkgerrors.ErrCodeTaskNotFound, "Task not found")
			return
		}
		respondError(c, http.StatusInternalServerError, pkgerrors.ErrCodeDBQuery, "Failed to get task")
		return
	}
	c.JSON(http.StatusOK, task)
}

// CancelTask handles POST /api/v1/tasks/:id/cancel.
// Only pending tasks can be cancelled.
func (h *TaskHandler) CancelTask(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.CancelTask(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusConflict, pkgerrors.ErrCodeTaskConflict,
				"Task is not pending or does not exist")
			return
		}
		respondError(c, http.StatusInternalServerError, pkgerrors.ErrCodeDBQuery, "Failed to cancel task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task cancelled", "task_id": id})
}

// RetryTask handles POST /api/v1/tasks/:id/retry.
// Only terminally failed tasks can be reset.
func (h *TaskHandler) RetryTask(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.RetryTask(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusConflict, pkgerrors.ErrCodeTaskConflict,
				"Task is not failed or does not exist")
			return
		}
		respondError(c, http.StatusInternalServerError, pkgerrors.ErrCodeDBQuery, "Failed to retry task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task queued for retry", "task_id": id})
}
