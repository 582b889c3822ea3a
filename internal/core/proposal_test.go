package core

import (
	"context"
	"errors"
	"testing"
)

// statusErr mimics a host API error carrying an upstream HTTP status.
type statusErr struct {
	status int
	msg    string
}

func (e *statusErr) Error() string   { return e.msg }
func (e *statusErr) HTTPStatus() int { return e.status }

type fakeHost struct {
	content []byte
	sha     string
	change  ChangeRequest

	readErr   error
	branchErr error
	commitErr error
	openErr   error
	getErr    error
	mergeErr  error
	closeErr  error

	calls        []string
	branches     map[string]bool
	committed    []byte
	commitSHA    string
	commitMsg    string
	commitBranch string
	openedTitle  string
	openedBody   string
	openedHead   string
	openedBase   string
	mergedTitle  string
	merged       bool
	closed       bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{sha: "abc123", branches: make(map[string]bool)}
}

func (f *fakeHost) ReadFile(_ context.Context, path, ref string) ([]byte, string, error) {
	f.calls = append(f.calls, "read")
	if f.readErr != nil {
		return nil, "", f.readErr
	}
	return f.content, f.sha, nil
}

func (f *fakeHost) CreateBranch(_ context.Context, name, fromBranch string) error {
	f.calls = append(f.calls, "branch")
	if f.branchErr != nil {
		return f.branchErr
	}
	if f.branches[name] {
		return &statusErr{status: 422, msg: "create ref HTTP 422: Reference already exists"}
	}
	f.branches[name] = true
	return nil
}

func (f *fakeHost) CommitFile(_ context.Context, path string, content []byte, message, branch, sha string) error {
	f.calls = append(f.calls, "commit")
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = content
	f.commitMsg = message
	f.commitBranch = branch
	f.commitSHA = sha
	return nil
}

func (f *fakeHost) OpenChange(_ context.Context, title, body, head, base string) (ChangeRequest, error) {
	f.calls = append(f.calls, "open")
	if f.openErr != nil {
		return ChangeRequest{}, f.openErr
	}
	f.openedTitle = title
	f.openedBody = body
	f.openedHead = head
	f.openedBase = base
	return ChangeRequest{Number: 42, Title: title, Body: body, HeadRef: head, BaseRef: base, State: StateOpen, HTMLURL: "https://example.test/pull/42"}, nil
}

func (f *fakeHost) GetChange(_ context.Context, number int) (ChangeRequest, error) {
	f.calls = append(f.calls, "get")
	if f.getErr != nil {
		return ChangeRequest{}, f.getErr
	}
	return f.change, nil
}

func (f *fakeHost) MergeChange(_ context.Context, number int, commitTitle string) error {
	f.calls = append(f.calls, "merge")
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.mergedTitle = commitTitle
	f.merged = true
	return nil
}

func (f *fakeHost) CloseChange(_ context.Context, number int) error {
	f.calls = append(f.calls, "close")
	if f.closeErr != nil {
		return f.closeErr
	}
	f.closed = true
	return nil
}

func testProposal() Proposal {
	return Proposal{
		Path:       "client-data.json",
		BranchName: "update/e-c",
		CommitMsg:  "Add e with client ID c",
		Title:      "Add client: e [c]",
		Body:       "body",
		Mutate: func(doc Document) (Document, error) {
			doc["e"] = []string{"c"}
			return doc, nil
		},
	}
}

func TestProposeSequence(t *testing.T) {
	host := newFakeHost()
	p := NewProposer(host, "main")

	cr, err := p.Propose(context.Background(), testProposal())
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	wantCalls := []string{"read", "branch", "commit", "open"}
	if len(host.calls) != len(wantCalls) {
		t.Fatalf("unexpected calls: %v", host.calls)
	}
	for i, c := range wantCalls {
		if host.calls[i] != c {
			t.Fatalf("call %d: got %s, want %s", i, host.calls[i], c)
		}
	}

	if host.commitSHA != "abc123" {
		t.Fatalf("commit did not carry the fetched revision marker: %q", host.commitSHA)
	}
	if host.commitBranch != "update/e-c" {
		t.Fatalf("unexpected commit branch: %q", host.commitBranch)
	}
	want := "{\n    \"e\": [\n        \"c\"\n    ]\n}\n"
	if string(host.committed) != want {
		t.Fatalf("unexpected committed content: %q", host.committed)
	}
	if host.openedHead != "update/e-c" || host.openedBase != "main" {
		t.Fatalf("unexpected change request refs: %s -> %s", host.openedHead, host.openedBase)
	}
	if cr.Number != 42 || cr.State != StateOpen {
		t.Fatalf("unexpected change request: %+v", cr)
	}
}

func TestProposeRepeatedRequestCollidesOnBranch(t *testing.T) {
	host := newFakeHost()
	p := NewProposer(host, "main")

	if _, err := p.Propose(context.Background(), testProposal()); err != nil {
		t.Fatalf("first propose: %v", err)
	}

	_, err := p.Propose(context.Background(), testProposal())
	var conflict *HostConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected HostConflictError, got %v", err)
	}

	// The second attempt must stop at branch creation.
	for _, c := range host.calls[6:] {
		if c == "commit" || c == "open" {
			t.Fatalf("second attempt continued past branch creation: %v", host.calls)
		}
	}
}

func TestProposeReadFailureAbortsEverything(t *testing.T) {
	host := newFakeHost()
	host.readErr = &statusErr{status: 404, msg: "get file contents HTTP 404: Not Found"}
	p := NewProposer(host, "main")

	_, err := p.Propose(context.Background(), testProposal())
	var notFound *HostNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected HostNotFoundError, got %v", err)
	}
	if len(host.calls) != 1 {
		t.Fatalf("expected no calls after the failed read, got %v", host.calls)
	}
}

func TestProposeMutationErrorStopsBeforeBranch(t *testing.T) {
	host := newFakeHost()
	p := NewProposer(host, "main")

	prop := testProposal()
	prop.Mutate = func(Document) (Document, error) {
		return nil, errors.New("bad mutation")
	}

	if _, err := p.Propose(context.Background(), prop); err == nil {
		t.Fatal("expected mutation error")
	}
	if len(host.calls) != 1 || host.calls[0] != "read" {
		t.Fatalf("expected only the read call, got %v", host.calls)
	}
}

func TestSafeBranchName(t *testing.T) {
	cases := []struct {
		parts []string
		want  string
	}{
		{[]string{"u", "HV"}, "u-HV"},
		{[]string{"a@b.com", "X"}, "a-b-com-X"},
		{[]string{"wf", "wf_1", "A 9"}, "wf-wf-1-A-9"},
	}
	for _, c := range cases {
		if got := SafeBranchName(c.parts...); got != c.want {
			t.Fatalf("SafeBranchName(%v) = %q, want %q", c.parts, got, c.want)
		}
	}

	// Identical inputs must always produce identical names.
	if SafeBranchName("a@b.com", "X") != SafeBranchName("a@b.com", "X") {
		t.Fatal("branch name not deterministic")
	}
}
