package core

import (
	"context"
	"regexp"
	"strings"
)

// Change request lifecycle states.
const (
	StateOpen   = "open"
	StateMerged = "merged"
	StateClosed = "closed"
)

// ChangeRequest is a proposed, reviewable modification to a tracked document.
type ChangeRequest struct {
	Number  int
	Title   string
	Body    string
	HTMLURL string
	HeadRef string
	BaseRef string
	State   string
}

// RepoHost is the slice of the repository-host API the bot needs. All writes
// target a single configured repository; the base branch is supplied by the
// caller.
type RepoHost interface {
	// ReadFile returns the file content at ref and its revision marker
	// (content sha), which a later CommitFile must present.
	ReadFile(ctx context.Context, path, ref string) (content []byte, sha string, err error)
	CreateBranch(ctx context.Context, name, fromBranch string) error
	CommitFile(ctx context.Context, path string, content []byte, message, branch, sha string) error
	OpenChange(ctx context.Context, title, body, head, base string) (ChangeRequest, error)
	GetChange(ctx context.Context, number int) (ChangeRequest, error)
	// MergeChange squash-merges; the resulting commit message is commitTitle.
	MergeChange(ctx context.Context, number int, commitTitle string) error
	CloseChange(ctx context.Context, number int) error
}

var branchUnsafe = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// SafeBranchName joins parts with hyphens and replaces every character
// outside [a-zA-Z0-9-] with a hyphen. The result is deterministic for
// identical inputs: a repeated identical request produces the same branch
// name and fails at branch creation instead of opening a duplicate change
// request. That collision is the idempotency guard; do not perturb the name
// to avoid it.
func SafeBranchName(parts ...string) string {
	return branchUnsafe.ReplaceAllString(strings.Join(parts, "-"), "-")
}

// MutateFunc transforms the current document into its proposed replacement.
// It must depend on nothing but its input.
type MutateFunc func(Document) (Document, error)

// Proposal describes one requested document change.
type Proposal struct {
	Path       string
	BranchName string
	CommitMsg  string
	Title      string
	Body       string
	Mutate     MutateFunc
}

// Proposer turns proposals into branches and change requests on the host.
type Proposer struct {
	host RepoHost
	base string
}

func NewProposer(host RepoHost, baseBranch string) *Proposer {
	return &Proposer{host: host, base: baseBranch}
}

// Propose runs the read, mutate, branch, commit, open sequence. Steps are
// strictly sequential and the first failure aborts the rest; there are no
// retries. The revision marker fetched in step one rides along to the commit,
// so a concurrent change to the base branch surfaces as a host conflict
// instead of being silently overwritten. On success exactly one branch and
// one change request exist; a failure after branch creation leaves a dangling
// branch behind, which is accepted.
func (p *Proposer) Propose(ctx context.Context, prop Proposal) (ChangeRequest, error) {
	raw, sha, err := p.host.ReadFile(ctx, prop.Path, p.base)
	if err != nil {
		return ChangeRequest{}, MapHostError(err)
	}

	doc, err := ParseDocument(raw)
	if err != nil {
		return ChangeRequest{}, err
	}
	next, err := prop.Mutate(doc)
	if err != nil {
		return ChangeRequest{}, err
	}
	content, err := next.Render()
	if err != nil {
		return ChangeRequest{}, err
	}

	if err := p.host.CreateBranch(ctx, prop.BranchName, p.base); err != nil {
		return ChangeRequest{}, MapHostError(err)
	}
	if err := p.host.CommitFile(ctx, prop.Path, content, prop.CommitMsg, prop.BranchName, sha); err != nil {
		return ChangeRequest{}, MapHostError(err)
	}

	cr, err := p.host.OpenChange(ctx, prop.Title, prop.Body, prop.BranchName, p.base)
	if err != nil {
		return ChangeRequest{}, MapHostError(err)
	}
	return cr, nil
}
