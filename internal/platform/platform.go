// Package platform defines the code hosting platform abstraction.
// The review pipeline talks to merge requests through the Client
// interface; concrete implementations live in subpackages.
package platform

import (
	"context"
	"strings"
	"time"
)

// DiffRefs holds the commit range a merge request diff spans
type DiffRefs struct {
	BaseSHA  string `json:"base_sha"`
	StartSHA string `json:"start_sha"`
	HeadSHA  string `json:"head_sha"`
}

// MergeRequest represents a merge request on the platform
type MergeRequest struct {
	// ProjectID is the full project path (e.g., "group/subgroup/project")
	ProjectID string `json:"project_id"`

	// IID is the merge request number within the project
	IID int64 `json:"iid"`

	Title        string   `json:"title"`
	Description  string   `json:"description"`
	State        string   `json:"state"`
	Author       string   `json:"author"`
	SourceBranch string   `json:"source_branch"`
	TargetBranch string   `json:"target_branch"`
	SHA          string   `json:"sha"`
	WebURL       string   `json:"web_url"`
	DiffRefs     DiffRefs `json:"diff_refs"`
}

// FileDiff is a single changed file in a merge request, carrying the
// raw unified diff body for that file.
type FileDiff struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
}

// Changes bundles merge request metadata with its file diffs
type Changes struct {
	MergeRequest *MergeRequest `json:"merge_request"`
	Diffs        []*FileDiff   `json:"diffs"`
}

// Position anchors an inline comment to a line in the merge request diff
type Position struct {
	BaseSHA  string `json:"base_sha"`
	StartSHA string `json:"start_sha"`
	HeadSHA  string `json:"head_sha"`
	NewPath  string `json:"new_path"`
	OldPath  string `json:"old_path"`
	NewLine  int64  `json:"new_line"`
}

// Note represents a comment (note) on a merge request
type Note struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	System    bool      `json:"system"`
	CreatedAt time.Time `json:"created_at"`
}

// Discussion is a comment thread on a merge request.
// Inline comments live in discussions; the first note carries the body.
type Discussion struct {
	ID    string  `json:"id"`
	Notes []*Note `json:"notes"`
}

// CommitState represents a commit status value
type CommitState string

const (
	CommitStatePending CommitState = "pending"
	CommitStateRunning CommitState = "running"
	CommitStateSuccess CommitState = "success"
	CommitStateFailed  CommitState = "failed"
)

// CommitStatus describes a status to attach to a commit
type CommitStatus struct {
	State       CommitState `json:"state"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	TargetURL   string      `json:"target_url"`
}

// Client is implemented by platform adapters
type Client interface {
	// Name returns the platform name (e.g., "gitlab")
	Name() string

	// GetChanges fetches merge request metadata and file diffs
	GetChanges(ctx context.Context, projectID string, mrIID int64) (*Changes, error)

	// CreateNote posts a top-level comment on the merge request
	CreateNote(ctx context.Context, projectID string, mrIID int64, body string) (*Note, error)

	// UpdateNote replaces the body of an existing comment
	UpdateNote(ctx context.Context, projectID string, mrIID int64, noteID int64, body string) error

	// ListNotes lists top-level comments on the merge request
	ListNotes(ctx context.Context, projectID string, mrIID int64) ([]*Note, error)

	// CreateInlineComment starts a discussion anchored to a diff line
	CreateInlineComment(ctx context.Context, projectID string, mrIID int64, body string, pos *Position) error

	// ListDiscussions lists comment threads on the merge request
	ListDiscussions(ctx context.Context, projectID string, mrIID int64) ([]*Discussion, error)

	// DeleteDiscussionNote removes a note from a discussion thread
	DeleteDiscussionNote(ctx context.Context, projectID string, mrIID int64, discussionID string, noteID int64) error

	// SetCommitStatus attaches a status to the given commit
	SetCommitStatus(ctx context.Context, projectID string, sha string, status *CommitStatus) error
}

// Webhook event kinds
type WebhookEventKind string

const (
	EventKindMergeRequest WebhookEventKind = "merge_request"
	EventKindPush         WebhookEventKind = "push"
)

// Merge request webhook actions, normalized across payload variants
const (
	ActionOpen   = "open"
	ActionUpdate = "update"
	ActionReopen = "reopen"
	ActionClose  = "close"
	ActionMerge  = "merge"
)

// WebhookEvent is a parsed webhook delivery
type WebhookEvent struct {
	Kind          WebhookEventKind `json:"kind"`
	ProjectID     string           `json:"project_id"`
	MRIID         int64            `json:"mr_iid,omitempty"`
	Action        string           `json:"action,omitempty"`
	Title         string           `json:"title,omitempty"`
	Description   string           `json:"description,omitempty"`
	Author        string           `json:"author,omitempty"`
	SourceBranch  string           `json:"source_branch,omitempty"`
	TargetBranch  string           `json:"target_branch,omitempty"`
	CommitSHA     string           `json:"commit_sha,omitempty"`
	BaseCommitSHA string           `json:"base_commit_sha,omitempty"`
}

// ShouldTriggerReview reports whether a merge request action warrants a
// review run. Close and merge events never do.
func ShouldTriggerReview(action string) bool {
	switch strings.ToLower(action) {
	case ActionOpen, ActionUpdate, ActionReopen, "opened", "reopened", "synchronize":
		return true
	default:
		return false
	}
}
