// Package gitlab implements the platform.Client interface for GitLab.
// It supports both GitLab.com (SaaS) and self-hosted GitLab instances,
// using the official GitLab API client library.
package gitlab

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strconv"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"go.uber.org/zap"

	"github.com/reviewpilot/reviewpilot/internal/platform"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
)

const platformName = "gitlab"

// GitLab API pagination configuration
const defaultPerPage = 100

// Default GitLab SaaS URL
const defaultGitLabURL = "https://gitlab.com"

// Config holds GitLab connection settings
type Config struct {
	// Token is the private or project access token
	Token string

	// BaseURL points at a self-hosted instance; empty means GitLab.com
	BaseURL string

	// InsecureSkipVerify disables TLS certificate verification
	InsecureSkipVerify bool
}

// Client implements platform.Client for GitLab
type Client struct {
	client  *gitlab.Client
	baseURL string
	logger  *zap.Logger
}

// New creates a GitLab client.
// Supports both GitLab.com and self-hosted instances with HTTP/HTTPS.
func New(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGitLabURL
	}

	clientOpts := []gitlab.ClientOptionFunc{}
	if baseURL != defaultGitLabURL {
		clientOpts = append(clientOpts, gitlab.WithBaseURL(baseURL))
	}

	if cfg.InsecureSkipVerify {
		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec // User explicitly enabled insecure mode
				},
			},
		}
		clientOpts = append(clientOpts, gitlab.WithHTTPClient(httpClient))
		logger.Warn("GitLab client configured with InsecureSkipVerify=true, SSL certificate verification is disabled")
	}

	client, err := gitlab.NewClient(cfg.Token, clientOpts...)
	if err != nil {
		return nil, platform.NewError(platformName, "init", "failed to create gitlab client", err)
	}

	logger.Info("GitLab client initialized",
		zap.String("base_url", baseURL),
		zap.Bool("insecure_skip_verify", cfg.InsecureSkipVerify),
	)

	return &Client{
		client:  client,
		baseURL: baseURL,
		logger:  logger.Named("platform." + platformName),
	}, nil
}

// Name returns the platform name
func (c *Client) Name() string {
	return platformName
}

// GetChanges fetches merge request metadata and the full set of file
// diffs, paging through the diff listing.
func (c *Client) GetChanges(ctx context.Context, projectID string, mrIID int64) (*platform.Changes, error) {
	mr, _, err := c.client.MergeRequests.GetMergeRequest(projectID, mrIID, nil)
	if err != nil {
		return nil, c.wrapError("get_merge_request", "failed to get merge request", err)
	}

	var diffs []*platform.FileDiff
	opt := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{PerPage: defaultPerPage},
	}
	for {
		page, resp, err := c.client.MergeRequests.ListMergeRequestDiffs(projectID, mrIID, opt)
		if err != nil {
			return nil, c.wrapError("list_diffs", "failed to list merge request diffs", err)
		}
		for _, d := range page {
			diffs = append(diffs, &platform.FileDiff{
				OldPath:     d.OldPath,
				NewPath:     d.NewPath,
				Diff:        d.Diff,
				NewFile:     d.NewFile,
				RenamedFile: d.RenamedFile,
				DeletedFile: d.DeletedFile,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	// In the official library, DiffRefs and Author are embedded structs
	result := &platform.Changes{
		MergeRequest: &platform.MergeRequest{
			ProjectID:    projectID,
			IID:          mr.IID,
			Title:        mr.Title,
			Description:  mr.Description,
			State:        mr.State,
			Author:       mr.Author.Username,
			SourceBranch: mr.SourceBranch,
			TargetBranch: mr.TargetBranch,
			SHA:          mr.SHA,
			WebURL:       mr.WebURL,
			DiffRefs: platform.DiffRefs{
				BaseSHA:  mr.DiffRefs.BaseSha,
				StartSHA: mr.DiffRefs.StartSha,
				HeadSHA:  mr.DiffRefs.HeadSha,
			},
		},
		Diffs: diffs,
	}

	c.logger.Debug("Fetched merge request changes",
		zap.String("project", projectID),
		zap.Int64("mr_iid", mrIID),
		zap.Int("files", len(diffs)),
	)
	return result, nil
}

// CreateNote posts a top-level comment on the merge request
func (c *Client) CreateNote(ctx context.Context, projectID string, mrIID int64, body string) (*platform.Note, error) {
	note, _, err := c.client.Notes.CreateMergeRequestNote(projectID, mrIID, &gitlab.CreateMergeRequestNoteOptions{
		Body: gitlab.Ptr(body),
	})
	if err != nil {
		return nil, c.wrapError("create_note", "failed to create merge request note", err)
	}
	return convertNote(note), nil
}

// UpdateNote replaces the body of an existing comment
func (c *Client) UpdateNote(ctx context.Context, projectID string, mrIID int64, noteID int64, body string) error {
	_, _, err := c.client.Notes.UpdateMergeRequestNote(projectID, mrIID, noteID, &gitlab.UpdateMergeRequestNoteOptions{
		Body: gitlab.Ptr(body),
	})
	if err != nil {
		return c.wrapError("update_note", "failed to update merge request note", err)
	}
	return nil
}

// ListNotes lists top-level comments on the merge request
func (c *Client) ListNotes(ctx context.Context, projectID string, mrIID int64) ([]*platform.Note, error) {
	var result []*platform.Note
	opt := &gitlab.ListMergeRequestNotesOptions{
		ListOptions: gitlab.ListOptions{PerPage: defaultPerPage},
	}
	for {
		notes, resp, err := c.client.Notes.ListMergeRequestNotes(projectID, mrIID, opt)
		if err != nil {
			return nil, c.wrapError("list_notes", "failed to list merge request notes", err)
		}
		for _, n := range notes {
			result = append(result, convertNote(n))
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return result, nil
}

// CreateInlineComment starts a discussion anchored to a line in the diff
func (c *Client) CreateInlineComment(ctx context.Context, projectID string, mrIID int64, body string, pos *platform.Position) error {
	_, _, err := c.client.Discussions.CreateMergeRequestDiscussion(projectID, mrIID, &gitlab.CreateMergeRequestDiscussionOptions{
		Body: gitlab.Ptr(body),
		Position: &gitlab.PositionOptions{
			PositionType: gitlab.Ptr("text"),
			BaseSHA:      gitlab.Ptr(pos.BaseSHA),
			StartSHA:     gitlab.Ptr(pos.StartSHA),
			HeadSHA:      gitlab.Ptr(pos.HeadSHA),
			NewPath:      gitlab.Ptr(pos.NewPath),
			OldPath:      gitlab.Ptr(pos.OldPath),
			NewLine:      gitlab.Ptr(pos.NewLine),
		},
	})
	if err != nil {
		return c.wrapError("create_inline_comment", "failed to create inline comment", err)
	}
	return nil
}

// ListDiscussions lists comment threads on the merge request
func (c *Client) ListDiscussions(ctx context.Context, projectID string, mrIID int64) ([]*platform.Discussion, error) {
	var result []*platform.Discussion
	opt := &gitlab.ListMergeRequestDiscussionsOptions{ListOptions: gitlab.ListOptions{PerPage: defaultPerPage}}
	for {
		discussions, resp, err := c.client.Discussions.ListMergeRequestDiscussions(projectID, mrIID, opt)
		if err != nil {
			return nil, c.wrapError("list_discussions", "failed to list merge request discussions", err)
		}
		for _, d := range discussions {
			conv := &platform.Discussion{ID: d.ID}
			for _, n := range d.Notes {
				conv.Notes = append(conv.Notes, convertNote(n))
			}
			result = append(result, conv)
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return result, nil
}

// DeleteDiscussionNote removes a note from a discussion thread
func (c *Client) DeleteDiscussionNote(ctx context.Context, projectID string, mrIID int64, discussionID string, noteID int64) error {
	_, err := c.client.Discussions.DeleteMergeRequestDiscussionNote(projectID, mrIID, discussionID, noteID)
	if err != nil {
		return c.wrapError("delete_discussion_note", "failed to delete discussion note", err)
	}
	return nil
}

// SetCommitStatus attaches a status to the given commit
func (c *Client) SetCommitStatus(ctx context.Context, projectID string, sha string, status *platform.CommitStatus) error {
	opt := &gitlab.SetCommitStatusOptions{
		State: buildState(status.State),
		Name:  gitlab.Ptr(status.Name),
	}
	if status.Description != "" {
		opt.Description = gitlab.Ptr(status.Description)
	}
	if status.TargetURL != "" {
		opt.TargetURL = gitlab.Ptr(status.TargetURL)
	}

	_, _, err := c.client.Commits.SetCommitStatus(projectID, sha, opt)
	if err != nil {
		return c.wrapError("set_commit_status", "failed to set commit status", err)
	}
	return nil
}

// buildState maps the platform commit state to the GitLab build state
func buildState(state platform.CommitState) gitlab.BuildStateValue {
	switch state {
	case platform.CommitStatePending:
		return gitlab.Pending
	case platform.CommitStateRunning:
		return gitlab.Running
	case platform.CommitStateSuccess:
		return gitlab.Success
	default:
		return gitlab.Failed
	}
}

// convertNote maps a GitLab note to the platform note type
func convertNote(n *gitlab.Note) *platform.Note {
	note := &platform.Note{
		ID:     n.ID,
		Body:   n.Body,
		Author: n.Author.Username,
		System: n.System,
	}
	if n.CreatedAt != nil {
		note.CreatedAt = *n.CreatedAt
	}
	return note
}

// wrapError translates GitLab API failures into the platform error
// taxonomy, carrying the HTTP status and Retry-After hint when known.
func (c *Client) wrapError(operation, message string, err error) error {
	perr := &platform.Error{
		Platform:  platformName,
		Operation: operation,
		Message:   message,
		Err:       err,
	}

	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		perr.StatusCode = errResp.Response.StatusCode
		if perr.StatusCode == http.StatusTooManyRequests {
			if after := errResp.Response.Header.Get("Retry-After"); after != "" {
				if secs, convErr := strconv.Atoi(after); convErr == nil && secs > 0 {
					perr.RetryAfter = time.Duration(secs) * time.Second
				}
			}
		}
	}

	c.logger.Error("GitLab API call failed",
		zap.String("operation", operation),
		zap.Int("status", perr.StatusCode),
		zap.Error(err),
	)
	return perr
}
