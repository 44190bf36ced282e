package gitlab

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/reviewpilot/reviewpilot/internal/platform"
)

const mrEventPayload = `{
	"object_kind": "merge_request",
	"user": {"username": "alice"},
	"project": {"path_with_namespace": "group/subgroup/project"},
	"object_attributes": {
		"iid": 42,
		"title": "Add feature",
		"description": "Implements the thing",
		"source_branch": "feature/thing",
		"target_branch": "main",
		"action": "open",
		"last_commit": {"id": "abc123"},
		"diff_refs": {"base_sha": "base456"}
	}
}`

// TestParseWebhook_MergeRequest tests parsing a merge request event
func TestParseWebhook_MergeRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(mrEventPayload))
	r.Header.Set("X-Gitlab-Event", "Merge Request Hook")

	event, err := ParseWebhook(r, "")
	if err != nil {
		t.Fatalf("ParseWebhook() failed: %v", err)
	}

	if event.Kind != platform.EventKindMergeRequest {
		t.Errorf("Kind = %q, want merge_request", event.Kind)
	}
	if event.ProjectID != "group/subgroup/project" {
		t.Errorf("ProjectID = %q, want 'group/subgroup/project'", event.ProjectID)
	}
	if event.MRIID != 42 {
		t.Errorf("MRIID = %d, want 42", event.MRIID)
	}
	if event.Action != platform.ActionOpen {
		t.Errorf("Action = %q, want open", event.Action)
	}
	if event.CommitSHA != "abc123" {
		t.Errorf("CommitSHA = %q, want abc123", event.CommitSHA)
	}
	if event.BaseCommitSHA != "base456" {
		t.Errorf("BaseCommitSHA = %q, want base456", event.BaseCommitSHA)
	}
	if event.Author != "alice" {
		t.Errorf("Author = %q, want alice", event.Author)
	}
}

// TestParseWebhook_TokenValidation tests webhook secret checking
func TestParseWebhook_TokenValidation(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		header  string
		wantErr bool
	}{
		{"no secret configured", "", "", false},
		{"matching token", "s3cret", "s3cret", false},
		{"wrong token", "s3cret", "wrong", true},
		{"missing token", "s3cret", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(mrEventPayload))
			r.Header.Set("X-Gitlab-Event", "Merge Request Hook")
			if tt.header != "" {
				r.Header.Set("X-Gitlab-Token", tt.header)
			}

			_, err := ParseWebhook(r, tt.secret)
			if tt.wantErr {
				if !errors.Is(err, platform.ErrInvalidWebhookToken) {
					t.Errorf("ParseWebhook() error = %v, want ErrInvalidWebhookToken", err)
				}
			} else if err != nil {
				t.Errorf("ParseWebhook() unexpected error: %v", err)
			}
		})
	}
}

// TestParseWebhook_InfersEventFromBody tests the object_kind fallback
func TestParseWebhook_InfersEventFromBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(mrEventPayload))

	event, err := ParseWebhook(r, "")
	if err != nil {
		t.Fatalf("ParseWebhook() failed: %v", err)
	}
	if event.Kind != platform.EventKindMergeRequest {
		t.Errorf("Kind = %q, want merge_request", event.Kind)
	}
}

// TestParseWebhook_UnsupportedEvent tests rejecting unknown event types
func TestParseWebhook_UnsupportedEvent(t *testing.T) {
	r := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(`{}`))
	r.Header.Set("X-Gitlab-Event", "Pipeline Hook")

	_, err := ParseWebhook(r, "")
	if err == nil {
		t.Error("ParseWebhook() expected error for unsupported event")
	}
}

// TestParseWebhook_PushEvent tests parsing a push event
func TestParseWebhook_PushEvent(t *testing.T) {
	payload := `{
		"object_kind": "push",
		"ref": "refs/heads/main",
		"after": "def789",
		"user_name": "bob",
		"project": {"path_with_namespace": "group/project"}
	}`
	r := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(payload))
	r.Header.Set("X-Gitlab-Event", "Push Hook")

	event, err := ParseWebhook(r, "")
	if err != nil {
		t.Fatalf("ParseWebhook() failed: %v", err)
	}
	if event.Kind != platform.EventKindPush {
		t.Errorf("Kind = %q, want push", event.Kind)
	}
	if event.CommitSHA != "def789" {
		t.Errorf("CommitSHA = %q, want def789", event.CommitSHA)
	}
}

// TestParseWebhook_MissingIID tests rejecting payloads without an IID
func TestParseWebhook_MissingIID(t *testing.T) {
	payload := `{
		"object_kind": "merge_request",
		"project": {"path_with_namespace": "group/project"},
		"object_attributes": {"title": "no iid"}
	}`
	r := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(payload))
	r.Header.Set("X-Gitlab-Event", "Merge Request Hook")

	_, err := ParseWebhook(r, "")
	if err == nil {
		t.Error("ParseWebhook() expected error for missing iid")
	}
}

// TestNormalizeAction tests action name normalization
func TestNormalizeAction(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"open", platform.ActionOpen},
		{"opened", platform.ActionOpen},
		{"update", platform.ActionUpdate},
		{"synchronize", platform.ActionUpdate},
		{"reopen", platform.ActionReopen},
		{"merge", platform.ActionMerge},
		{"close", platform.ActionClose},
		{"approved", "approved"},
	}
	for _, tt := range tests {
		if got := normalizeAction(tt.in); got != tt.want {
			t.Errorf("normalizeAction(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestShouldTriggerReview tests which actions start a review
func TestShouldTriggerReview(t *testing.T) {
	trigger := []string{"open", "update", "reopen", "opened", "synchronize"}
	for _, a := range trigger {
		if !platform.ShouldTriggerReview(a) {
			t.Errorf("ShouldTriggerReview(%q) = false, want true", a)
		}
	}
	skip := []string{"close", "merge", "approved", ""}
	for _, a := range skip {
		if platform.ShouldTriggerReview(a) {
			t.Errorf("ShouldTriggerReview(%q) = true, want false", a)
		}
	}
}
