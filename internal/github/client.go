// Package github is a minimal GitHub REST v3 client covering the operations
// the approval flow needs: reading and committing a file, branching, and the
// pull request lifecycle.
package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/approvalbot/approvalbot/internal/telemetry"
)

const defaultBaseURL = "https://api.github.com"

// Client authenticates either with a static personal access token or as a
// GitHub App (RS256 app JWT exchanged for a cached installation token).
type Client struct {
	baseURL    string
	httpClient *http.Client

	token string

	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey

	mu        sync.Mutex
	instToken string
	expAt     time.Time
}

// NewTokenClient builds a client using a personal access token.
func NewTokenClient(token string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewAppClient builds a client authenticating as a GitHub App. A zero
// installationID is discovered from the API when the app has exactly one
// installation.
func NewAppClient(appID, installationID int64, keyPath string) (*Client, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", keyPath)
	}

	key, err := parseRSAPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Client{
		baseURL:        defaultBaseURL,
		appID:          appID,
		installationID: installationID,
		privateKey:     key,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	pkcs8Key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := pkcs8Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}

// SECURITY: JWT signed with RS256 per GitHub App spec.
// 10 min expiry; refreshed with 1 min safety buffer.
func (c *Client) makeJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(c.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(c.privateKey)
}

type installationTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type installationInfo struct {
	ID int64 `json:"id"`
}

func (c *Client) ensureInstallationID(ctx context.Context) error {
	if c.installationID != 0 {
		return nil
	}

	jwtStr, err := c.makeJWT()
	if err != nil {
		return fmt.Errorf("sign JWT: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/app/installations?per_page=100", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+jwtStr)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discover installation id: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discover installation id HTTP %d: %s", resp.StatusCode, body)
	}

	var installations []installationInfo
	if err := json.NewDecoder(resp.Body).Decode(&installations); err != nil {
		return fmt.Errorf("decode installations response: %w", err)
	}

	if len(installations) == 0 {
		return fmt.Errorf("no installation found for this GitHub App")
	}
	if len(installations) > 1 {
		return fmt.Errorf("multiple installations found (%d), set GITHUB_INSTALLATION_ID explicitly", len(installations))
	}

	c.installationID = installations[0].ID
	return nil
}

func (c *Client) installationToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureInstallationID(ctx); err != nil {
		return "", err
	}

	if c.instToken != "" && time.Now().Before(c.expAt.Add(-time.Minute)) {
		return c.instToken, nil
	}

	jwtStr, err := c.makeJWT()
	if err != nil {
		return "", fmt.Errorf("sign JWT: %w", err)
	}

	tokenURL := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.baseURL, c.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+jwtStr)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request installation token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("installation token HTTP %d: %s", resp.StatusCode, body)
	}

	var tok installationTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	c.instToken = tok.Token
	c.expAt = tok.ExpiresAt
	return c.instToken, nil
}

func (c *Client) authToken(ctx context.Context) (string, error) {
	if c.token != "" {
		return c.token, nil
	}
	return c.installationToken(ctx)
}

func (c *Client) doAPI(ctx context.Context, method, url string, body any) (*http.Response, error) {
	token, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// APIError is a non-success response from the GitHub API.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s HTTP %d: %s", e.Operation, e.StatusCode, e.Body)
}

// HTTPStatus returns the upstream status code, letting callers classify the
// failure without depending on this package's types.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

func apiError(operation string, resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("%s HTTP %d and read body failed: %w", operation, resp.StatusCode, readErr)
	}
	telemetry.IncGitHubAPIError(operation, resp.StatusCode)
	return &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: string(body)}
}

// RepoFile is the decoded content of one file plus its blob sha, the revision
// marker required to commit a replacement.
type RepoFile struct {
	Content []byte
	SHA     string
}

type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

// GetFileContents reads a file at the given ref.
func (c *Client) GetFileContents(ctx context.Context, owner, repo, path, ref string) (*RepoFile, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s", c.baseURL, owner, repo, path, url.QueryEscape(ref))
	resp, err := c.doAPI(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("get file contents", resp)
	}

	var cr contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode file contents: %w", err)
	}
	if cr.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected content encoding %q", cr.Encoding)
	}
	// The contents API wraps base64 across lines.
	decoded, err := base64.StdEncoding.DecodeString(stripNewlines(cr.Content))
	if err != nil {
		return nil, fmt.Errorf("decode file content: %w", err)
	}
	return &RepoFile{Content: decoded, SHA: cr.SHA}, nil
}

func stripNewlines(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\n' && s[i] != '\r' {
			b = append(b, s[i])
		}
	}
	return string(b)
}

type branchResponse struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// GetBranchSHA returns the tip commit sha of a branch.
func (c *Client) GetBranchSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/branches/%s", c.baseURL, owner, repo, branch)
	resp, err := c.doAPI(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError("get branch", resp)
	}

	var br branchResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return "", fmt.Errorf("decode branch: %w", err)
	}
	return br.Commit.SHA, nil
}

type createRefInput struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// CreateRef creates a branch pointing at sha. An already-existing branch
// surfaces as HTTP 422.
func (c *Client) CreateRef(ctx context.Context, owner, repo, branch, sha string) error {
	u := fmt.Sprintf("%s/repos/%s/%s/git/refs", c.baseURL, owner, repo)
	resp, err := c.doAPI(ctx, http.MethodPost, u, createRefInput{Ref: "refs/heads/" + branch, SHA: sha})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return apiError("create ref", resp)
	}
	return nil
}

// UpdateFileInput describes one file commit.
type UpdateFileInput struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

// UpdateFile commits new content for a file on a branch. Content is raw; this
// method base64-encodes it. The sha must be the blob sha returned by
// GetFileContents; a stale sha is rejected by the API with HTTP 409.
func (c *Client) UpdateFile(ctx context.Context, owner, repo, path string, content []byte, message, branch, sha string) error {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, owner, repo, path)
	in := UpdateFileInput{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     sha,
		Branch:  branch,
	}
	resp, err := c.doAPI(ctx, http.MethodPut, u, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return apiError("update file", resp)
	}
	return nil
}

// PullRequest is the subset of the API's pull request object the bot uses.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	Merged  bool   `json:"merged"`
	Base    struct {
		Ref string `json:"ref"`
	} `json:"base"`
	Head struct {
		Ref string `json:"ref"`
	} `json:"head"`
}

// CreatePullRequestInput is the request body for opening a pull request.
type CreatePullRequestInput struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body,omitempty"`
}

func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, in CreatePullRequestInput) (*PullRequest, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/pulls", c.baseURL, owner, repo)
	resp, err := c.doAPI(ctx, http.MethodPost, u, in)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, apiError("create pull request", resp)
	}

	var pr PullRequest
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode pull request: %w", err)
	}
	return &pr, nil
}

func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, prNumber int) (*PullRequest, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, prNumber)
	resp, err := c.doAPI(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("get pull request", resp)
	}

	var pr PullRequest
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode pull request: %w", err)
	}
	return &pr, nil
}

type mergeInput struct {
	CommitTitle string `json:"commit_title,omitempty"`
	MergeMethod string `json:"merge_method"`
}

// MergePullRequest squash-merges, so the base branch gains a single commit
// titled commitTitle.
func (c *Client) MergePullRequest(ctx context.Context, owner, repo string, prNumber int, commitTitle string) error {
	u := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/merge", c.baseURL, owner, repo, prNumber)
	resp, err := c.doAPI(ctx, http.MethodPut, u, mergeInput{CommitTitle: commitTitle, MergeMethod: "squash"})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError("merge pull request", resp)
	}
	return nil
}

type updatePullInput struct {
	State string `json:"state"`
}

// ClosePullRequest closes without merging.
func (c *Client) ClosePullRequest(ctx context.Context, owner, repo string, prNumber int) error {
	u := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, prNumber)
	resp, err := c.doAPI(ctx, http.MethodPatch, u, updatePullInput{State: "closed"})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError("close pull request", resp)
	}
	return nil
}
