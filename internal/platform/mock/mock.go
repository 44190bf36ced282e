// Package mock implements an in-memory platform client for testing.
// State mutations are recorded so tests can assert on posted comments,
// updated notes, and commit statuses.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/reviewpilot/reviewpilot/internal/platform"
)

// ClientName is the identifier for the mock platform
const ClientName = "mock"

// InlineComment records a CreateInlineComment call
type InlineComment struct {
	Body     string
	Position *platform.Position
}

// StatusUpdate records a SetCommitStatus call
type StatusUpdate struct {
	SHA    string
	Status *platform.CommitStatus
}

// Client implements platform.Client against in-memory state
type Client struct {
	mu sync.Mutex

	// Changes is returned by GetChanges when ChangesErr is nil
	Changes *platform.Changes

	// Errors injected per operation; nil means success
	ChangesErr       error
	CreateNoteErr    error
	UpdateNoteErr    error
	InlineCommentErr error
	CommitStatusErr  error

	// Recorded state
	Notes          []*platform.Note
	UpdatedNotes   map[int64]string
	InlineComments []InlineComment
	Discussions    []*platform.Discussion
	DeletedNotes   []int64
	StatusUpdates  []StatusUpdate

	nextNoteID int64
}

// New creates an empty mock client
func New() *Client {
	return &Client{
		UpdatedNotes: make(map[int64]string),
		nextNoteID:   1000,
	}
}

// Name returns the platform name
func (c *Client) Name() string {
	return ClientName
}

// GetChanges returns the configured changes or error
func (c *Client) GetChanges(ctx context.Context, projectID string, mrIID int64) (*platform.Changes, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ChangesErr != nil {
		return nil, c.ChangesErr
	}
	if c.Changes == nil {
		return nil, platform.NewError(ClientName, "get_changes", "no changes configured", nil)
	}
	return c.Changes, nil
}

// CreateNote records a top-level comment
func (c *Client) CreateNote(ctx context.Context, projectID string, mrIID int64, body string) (*platform.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CreateNoteErr != nil {
		return nil, c.CreateNoteErr
	}
	c.nextNoteID++
	note := &platform.Note{ID: c.nextNoteID, Body: body}
	c.Notes = append(c.Notes, note)
	return note, nil
}

// UpdateNote records a note body replacement
func (c *Client) UpdateNote(ctx context.Context, projectID string, mrIID int64, noteID int64, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.UpdateNoteErr != nil {
		return c.UpdateNoteErr
	}
	for _, n := range c.Notes {
		if n.ID == noteID {
			n.Body = body
			c.UpdatedNotes[noteID] = body
			return nil
		}
	}
	return platform.NewError(ClientName, "update_note", fmt.Sprintf("note %d not found", noteID), nil)
}

// ListNotes returns the recorded top-level comments
func (c *Client) ListNotes(ctx context.Context, projectID string, mrIID int64) ([]*platform.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*platform.Note, len(c.Notes))
	copy(out, c.Notes)
	return out, nil
}

// CreateInlineComment records an inline comment
func (c *Client) CreateInlineComment(ctx context.Context, projectID string, mrIID int64, body string, pos *platform.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.InlineCommentErr != nil {
		return c.InlineCommentErr
	}
	c.InlineComments = append(c.InlineComments, InlineComment{Body: body, Position: pos})
	return nil
}

// ListDiscussions returns the configured discussions
func (c *Client) ListDiscussions(ctx context.Context, projectID string, mrIID int64) ([]*platform.Discussion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*platform.Discussion, len(c.Discussions))
	copy(out, c.Discussions)
	return out, nil
}

// DeleteDiscussionNote records a note deletion
func (c *Client) DeleteDiscussionNote(ctx context.Context, projectID string, mrIID int64, discussionID string, noteID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DeletedNotes = append(c.DeletedNotes, noteID)
	return nil
}

// SetCommitStatus records a commit status update
func (c *Client) SetCommitStatus(ctx context.Context, projectID string, sha string, status *platform.CommitStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CommitStatusErr != nil {
		return c.CommitStatusErr
	}
	c.StatusUpdates = append(c.StatusUpdates, StatusUpdate{SHA: sha, Status: status})
	return nil
}
