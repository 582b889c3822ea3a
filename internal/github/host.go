package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/approvalbot/approvalbot/internal/core"
)

// Host adapts Client to the core.RepoHost interface for a single repository.
type Host struct {
	client *Client
	owner  string
	repo   string
}

var _ core.RepoHost = (*Host)(nil)

// NewHost binds a client to a repository given as "owner/name".
func NewHost(client *Client, repoSlug string) (*Host, error) {
	owner, repo, ok := strings.Cut(repoSlug, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("repository must be owner/name, got %q", repoSlug)
	}
	return &Host{client: client, owner: owner, repo: repo}, nil
}

func (h *Host) ReadFile(ctx context.Context, path, ref string) ([]byte, string, error) {
	f, err := h.client.GetFileContents(ctx, h.owner, h.repo, path, ref)
	if err != nil {
		return nil, "", err
	}
	return f.Content, f.SHA, nil
}

func (h *Host) CreateBranch(ctx context.Context, name, fromBranch string) error {
	sha, err := h.client.GetBranchSHA(ctx, h.owner, h.repo, fromBranch)
	if err != nil {
		return err
	}
	return h.client.CreateRef(ctx, h.owner, h.repo, name, sha)
}

func (h *Host) CommitFile(ctx context.Context, path string, content []byte, message, branch, sha string) error {
	return h.client.UpdateFile(ctx, h.owner, h.repo, path, content, message, branch, sha)
}

func (h *Host) OpenChange(ctx context.Context, title, body, head, base string) (core.ChangeRequest, error) {
	pr, err := h.client.CreatePullRequest(ctx, h.owner, h.repo, CreatePullRequestInput{
		Title: title,
		Head:  head,
		Base:  base,
		Body:  body,
	})
	if err != nil {
		return core.ChangeRequest{}, err
	}
	return toChangeRequest(pr), nil
}

func (h *Host) GetChange(ctx context.Context, number int) (core.ChangeRequest, error) {
	pr, err := h.client.GetPullRequest(ctx, h.owner, h.repo, number)
	if err != nil {
		return core.ChangeRequest{}, err
	}
	return toChangeRequest(pr), nil
}

func (h *Host) MergeChange(ctx context.Context, number int, commitTitle string) error {
	return h.client.MergePullRequest(ctx, h.owner, h.repo, number, commitTitle)
}

func (h *Host) CloseChange(ctx context.Context, number int) error {
	return h.client.ClosePullRequest(ctx, h.owner, h.repo, number)
}

func toChangeRequest(pr *PullRequest) core.ChangeRequest {
	state := pr.State
	if pr.Merged {
		state = core.StateMerged
	}
	return core.ChangeRequest{
		Number:  pr.Number,
		Title:   pr.Title,
		Body:    pr.Body,
		HTMLURL: pr.HTMLURL,
		HeadRef: pr.Head.Ref,
		BaseRef: pr.Base.Ref,
		State:   state,
	}
}
