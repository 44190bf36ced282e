package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reviewpilot/reviewpilot/internal/engine"
	"github.com/reviewpilot/reviewpilot/internal/store"
	pkgerrors "github.com/reviewpilot/reviewpilot/pkg/errors"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
)

// ReviewHandler handles review queries and manual triggers
type ReviewHandler struct {
	engine *engine.Engine
	store  store.Store
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(e *engine.Engine, s store.Store) *ReviewHandler {
	return &ReviewHandler{engine: e, store: s}
}

// triggerRequest is the payload for manually triggering a review
type triggerRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	MRIID     int64  `json:"mr_iid" binding:"required"`
}

// TriggerReview handles POST /api/v1/reviews
func (h *ReviewHandler) TriggerReview(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, pkgerrors.ErrCodeValidation,
			"project_id and mr_iid are required")
		return
	}

	task, created, err := h.engine.EnqueueManual(req.ProjectID, req.MRIID)
	if err != nil {
		logger.Error("Failed to enqueue manual review",
			zap.String("project", req.ProjectID),
			zap.Int64("mr_iid", req.MRIID),
			zap.Error(err),
		)
		respondAppError(c, err)
		return
	}

	logger.Info("Manual review triggered",
		zap.String("task_id", task.ID),
		zap.String("project", req.ProjectID),
		zap.Int64("mr_iid", req.MRIID),
		zap.Bool("created", created),
	)
	c.JSON(http.StatusAccepted, gin.H{
		"task_id": task.ID,
		"created": created,
	})
}

// ListReviews handles GET /api/v1/reviews
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	limit, offset := parsePagination(c)
	status := c.Query("status")

	reviews, total, err := h.store.Review().List(status, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, pkgerrors.ErrCodeDBQuery, "Failed to list reviews")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetReview handles GET /api/v1/reviews/:id, including its logs
func (h *ReviewHandler) GetReview(c *gin.Context) {
	review, err := h.store.Review().GetByIDWithLogs(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, pkgerrors.ErrCodeReviewNotFound, "Review not found")
			return
		}
		respondError(c, http.StatusInternalServerError, pkgerrors.ErrCodeDBQuery, "Failed to get review")
		return
	}
	c.JSON(http.StatusOK, review)
}

// GetLatestReview handles GET /api/v1/reviews/latest with project_id
// and mr_iid query parameters.
func (h *ReviewHandler) GetLatestReview(c *gin.Context) {
	projectID := c.Query("project_id")
	mrIID, err := parseMRIID(c.Query("mr_iid"))
	if projectID == "" || err != nil {
		respondError(c, http.StatusBadRequest, pkgerrors.ErrCodeValidation,
			"project_id and mr_iid query parameters are required")
		return
	}

	review, err := h.store.Review().GetLatestByProjectAndMR(projectID, mrIID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, pkgerrors.ErrCodeReviewNotFound, "Review not found")
			return
		}
		respondError(c, http.StatusInternalServerError, pkgerrors.ErrCodeDBQuery, "Failed to get review")
		return
	}
	c.JSON(http.StatusOK, review)
}
