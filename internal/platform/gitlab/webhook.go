package gitlab

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/reviewpilot/reviewpilot/internal/platform"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
)

// ParseWebhook parses an incoming GitLab webhook request.
// When secret is non-empty the X-Gitlab-Token header must match it.
func ParseWebhook(r *http.Request, secret string) (*platform.WebhookEvent, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, platform.NewError(platformName, "parse_webhook", "failed to read webhook body", err)
	}

	// GitLab uses the X-Gitlab-Token header for webhook authentication
	if secret != "" {
		token := r.Header.Get("X-Gitlab-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			logger.Warn("Invalid webhook token received",
				zap.Int("expected_length", len(secret)),
				zap.Int("received_length", len(token)),
			)
			return nil, platform.NewError(platformName, "parse_webhook", "webhook authentication failed", platform.ErrInvalidWebhookToken)
		}
	}

	eventType := r.Header.Get("X-Gitlab-Event")

	// If the header is empty, try to infer from the body's object_kind field
	if eventType == "" {
		var fallbackPayload struct {
			ObjectKind string `json:"object_kind"`
		}
		if err := json.Unmarshal(body, &fallbackPayload); err == nil {
			switch fallbackPayload.ObjectKind {
			case "merge_request":
				eventType = "Merge Request Hook"
			case "push":
				eventType = "Push Hook"
			}
		}
	}

	switch eventType {
	case "Merge Request Hook":
		return parseMergeRequestEvent(body)
	case "Push Hook":
		return parsePushEvent(body)
	default:
		return nil, platform.NewError(platformName, "parse_webhook",
			fmt.Sprintf("unsupported event type: %s", eventType), nil)
	}
}

// parseMergeRequestEvent parses a merge request webhook payload
func parseMergeRequestEvent(body []byte) (*platform.WebhookEvent, error) {
	var payload struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		Project struct {
			PathWithNamespace string `json:"path_with_namespace"`
		} `json:"project"`
		ObjectAttributes struct {
			IID          int64  `json:"iid"`
			Title        string `json:"title"`
			Description  string `json:"description"`
			SourceBranch string `json:"source_branch"`
			TargetBranch string `json:"target_branch"`
			Action       string `json:"action"`
			LastCommit   struct {
				ID string `json:"id"`
			} `json:"last_commit"`
			DiffRefs struct {
				BaseSha string `json:"base_sha"`
			} `json:"diff_refs"`
		} `json:"object_attributes"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, platform.NewError(platformName, "parse_webhook", "failed to parse merge request event", err)
	}
	if payload.Project.PathWithNamespace == "" {
		return nil, platform.NewError(platformName, "parse_webhook", "missing project path", nil)
	}
	if payload.ObjectAttributes.IID == 0 {
		return nil, platform.NewError(platformName, "parse_webhook", "missing merge request iid", nil)
	}

	attrs := payload.ObjectAttributes
	event := &platform.WebhookEvent{
		Kind:          platform.EventKindMergeRequest,
		ProjectID:     payload.Project.PathWithNamespace,
		MRIID:         attrs.IID,
		Action:        normalizeAction(attrs.Action),
		Title:         attrs.Title,
		Description:   attrs.Description,
		Author:        payload.User.Username,
		SourceBranch:  attrs.SourceBranch,
		TargetBranch:  attrs.TargetBranch,
		CommitSHA:     attrs.LastCommit.ID,
		BaseCommitSHA: attrs.DiffRefs.BaseSha,
	}

	logger.Info("Parsed GitLab merge request webhook",
		zap.String("project", event.ProjectID),
		zap.Int64("mr_iid", event.MRIID),
		zap.String("action", event.Action),
		zap.String("original_action", attrs.Action),
	)
	return event, nil
}

// parsePushEvent parses a push webhook payload
func parsePushEvent(body []byte) (*platform.WebhookEvent, error) {
	var payload struct {
		Ref     string `json:"ref"`
		After   string `json:"after"`
		Project struct {
			PathWithNamespace string `json:"path_with_namespace"`
		} `json:"project"`
		UserName string `json:"user_name"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, platform.NewError(platformName, "parse_webhook", "failed to parse push event", err)
	}
	if payload.Project.PathWithNamespace == "" {
		return nil, platform.NewError(platformName, "parse_webhook", "missing project path", nil)
	}

	return &platform.WebhookEvent{
		Kind:      platform.EventKindPush,
		ProjectID: payload.Project.PathWithNamespace,
		Author:    payload.UserName,
		CommitSHA: payload.After,
	}, nil
}

// normalizeAction maps GitLab action names to the normalized set
func normalizeAction(action string) string {
	switch strings.ToLower(action) {
	case "open", "opened":
		return platform.ActionOpen
	case "update", "synchronize":
		return platform.ActionUpdate
	case "reopen", "reopened":
		return platform.ActionReopen
	case "close", "closed":
		return platform.ActionClose
	case "merge", "merged":
		return platform.ActionMerge
	default:
		return strings.ToLower(action)
	}
}
