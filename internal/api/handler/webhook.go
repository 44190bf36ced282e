package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reviewpilot/reviewpilot/internal/engine"
	"github.com/reviewpilot/reviewpilot/internal/platform"
	"github.com/reviewpilot/reviewpilot/internal/platform/gitlab"
	pkgerrors "github.com/reviewpilot/reviewpilot/pkg/errors"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
)

// WebhookHandler handles incoming GitLab webhook deliveries
type WebhookHandler struct {
	engine *engine.Engine
	secret string
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(e *engine.Engine, secret string) *WebhookHandler {
	if secret == "" {
		logger.Warn("Webhook secret not configured, token validation is skipped")
	}
	return &WebhookHandler{engine: e, secret: secret}
}

// HandleGitLab handles POST /api/v1/webhooks/gitlab
func (h *WebhookHandler) HandleGitLab(c *gin.Context) {
	event, err := gitlab.ParseWebhook(c.Request, h.secret)
	if err != nil {
		if errors.Is(err, platform.ErrInvalidWebhookToken) {
			respondError(c, http.StatusUnauthorized, pkgerrors.ErrCodePlatformAuth, "Invalid webhook token")
			return
		}
		logger.Warn("Failed to parse webhook", zap.Error(err))
		respondError(c, http.StatusBadRequest, pkgerrors.ErrCodeWebhookPayload,
			"Failed to parse webhook: "+err.Error())
		return
	}

	logger.Info("Webhook received",
		zap.String("kind", string(event.Kind)),
		zap.String("project", event.ProjectID),
		zap.Int64("mr_iid", event.MRIID),
		zap.String("action", event.Action),
		zap.String("author", event.Author),
	)

	task, created, err := h.engine.EnqueueFromEvent(event)
	if err != nil {
		respondAppError(c, err)
		return
	}
	if task == nil {
		// Acknowledged but not review-worthy
		c.JSON(http.StatusOK, gin.H{
			"message": "Event received but not processed",
			"action":  event.Action,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": task.ID,
		"created": created,
	})
}
