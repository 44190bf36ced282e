// Package router sets up the API routes for the application.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/reviewpilot/reviewpilot/internal/api/handler"
	"github.com/reviewpilot/reviewpilot/internal/api/middleware"
	"github.com/reviewpilot/reviewpilot/internal/config"
	"github.com/reviewpilot/reviewpilot/internal/engine"
	"github.com/reviewpilot/reviewpilot/internal/store"
	"github.com/reviewpilot/reviewpilot/pkg/metrics"
)

// Setup configures all API routes
func Setup(r *gin.Engine, e *engine.Engine, cfg *config.Config, s store.Store, m *metrics.Metrics) {
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger(&middleware.LoggerConfig{
		AccessLog: cfg.Logging.AccessLog,
	}))
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler(cfg.Server.Debug))

	systemHandler := handler.NewSystemHandler(e)
	r.GET("/healthz", systemHandler.Health)
	if m != nil {
		r.GET("/metrics", m.Handler())
	}

	v1 := r.Group("/api/v1")

	// Webhook routes are public; the secret token is the authentication
	webhookHandler := handler.NewWebhookHandler(e, cfg.GitLab.WebhookSecret)
	v1.POST("/webhooks/gitlab", webhookHandler.HandleGitLab)

	v1.GET("/stats", systemHandler.Stats)
	v1.GET("/version", systemHandler.Version)

	reviewHandler := handler.NewReviewHandler(e, s)
	reviews := v1.Group("/reviews")
	{
		reviews.POST("", reviewHandler.TriggerReview)
		reviews.GET("", reviewHandler.ListReviews)
		reviews.GET("/latest", reviewHandler.GetLatestReview)
		reviews.GET("/:id", reviewHandler.GetReview)
	}

	taskHandler := handler.NewTaskHandler(e, s)
	tasks := v1.Group("/tasks")
	{
		tasks.GET("", taskHandler.ListTasks)
		tasks.GET("/:id", taskHandler.GetTask)
		tasks.POST("/:id/cancel", taskHandler.CancelTask)
		tasks.POST("/:id/retry", taskHandler.RetryTask)
	}
}
