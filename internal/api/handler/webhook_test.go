package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpilot/reviewpilot/internal/store"
)

const mrHookPayload = `{
	"object_kind": "merge_request",
	"user": {"username": "dev"},
	"project": {"path_with_namespace": "group/project"},
	"object_attributes": {
		"iid": 42,
		"title": "Add rate limiter",
		"description": "Adds a token bucket",
		"source_branch": "feature/rate-limiter",
		"target_branch": "main",
		"action": "open",
		"last_commit": {"id": "abc123def456"},
		"diff_refs": {"base_sha": "base123"}
	}
}`

func closedHookPayload() string {
	return strings.Replace(mrHookPayload, `"action": "open"`, `"action": "close"`, 1)
}

func newWebhookRouter(t *testing.T, secret string) (*gin.Engine, store.Store) {
	t.Helper()
	e, s, cleanup := newTestEngine(t)
	t.Cleanup(cleanup)

	r := gin.New()
	r.POST("/api/v1/webhooks/gitlab", NewWebhookHandler(e, secret).HandleGitLab)
	return r, s
}

func pendingTaskID(s store.Store) string {
	task, err := s.Task().GetPendingByProjectAndMR("group/project", 42)
	if err != nil {
		return ""
	}
	return task.ID
}

func postWebhook(r *gin.Engine, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gitlab", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gitlab-Event", "Merge Request Hook")
	if token != "" {
		req.Header.Set("X-Gitlab-Token", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleGitLab_EnqueuesTask(t *testing.T) {
	r, s := newWebhookRouter(t, "hook-secret")

	w := postWebhook(r, mrHookPayload, "hook-secret")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"created":true`)
	assert.NotEmpty(t, pendingTaskID(s))
}

func TestHandleGitLab_InvalidToken(t *testing.T) {
	r, s := newWebhookRouter(t, "hook-secret")

	w := postWebhook(r, mrHookPayload, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, pendingTaskID(s), "rejected webhooks must not enqueue")
}

func TestHandleGitLab_IgnoredAction(t *testing.T) {
	r, s := newWebhookRouter(t, "")

	w := postWebhook(r, closedHookPayload(), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "not processed")
	assert.Empty(t, pendingTaskID(s))
}

func TestHandleGitLab_MalformedPayload(t *testing.T) {
	r, _ := newWebhookRouter(t, "")

	w := postWebhook(r, `{"object_kind": "merge_request", "project": {}}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGitLab_DuplicateDelivery(t *testing.T) {
	r, s := newWebhookRouter(t, "")

	first := postWebhook(r, mrHookPayload, "")
	require.Equal(t, http.StatusAccepted, first.Code)

	second := postWebhook(r, mrHookPayload, "")
	require.Equal(t, http.StatusAccepted, second.Code)
	assert.Contains(t, second.Body.String(), `"created":false`)
	assert.NotEmpty(t, pendingTaskID(s))
}
