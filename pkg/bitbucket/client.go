// Package bitbucket is a minimal Bitbucket Cloud REST client covering the
// repository lifecycle operations of the smoke flow. Calls whose responses
// feed the simulated webhook return raw JSON so the provider payload can be
// forwarded verbatim.
package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"prsmoke/internal"
)

// DefaultBaseURL is the Bitbucket Cloud API root.
const DefaultBaseURL = "https://api.bitbucket.org/2.0"

// Client issues bearer-authenticated requests against the hosting provider.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient returns a client for the given API root and bearer token.
func NewClient(baseURL, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL: base,
		token:   token,
		httpc:   http.DefaultClient,
	}
}

// PullRequestOptions describes the pull request to open.
type PullRequestOptions struct {
	Title             string
	SourceBranch      string
	DestinationBranch string
	CloseSourceBranch bool
	Reason            string
}

// CreateRepository creates a git-backed repository under the workspace and
// returns the provider's raw response.
func (c *Client) CreateRepository(ctx context.Context, workspace, repo string) (json.RawMessage, error) {
	internal.IncAPICall("create_repository")
	return c.doJSON(ctx, http.MethodPost, c.repoURL(workspace, repo), map[string]string{"scm": "git"})
}

// CreateBranch creates a branch pointing at startRef. The API resolves
// target.hash from a ref name as well as a commit hash, so the branch start
// point may be named by the branch it forks from.
func (c *Client) CreateBranch(ctx context.Context, workspace, repo, name, startRef string) error {
	internal.IncAPICall("create_branch")
	body := map[string]interface{}{
		"name":   name,
		"target": map[string]string{"hash": startRef},
	}
	_, err := c.doJSON(ctx, http.MethodPost, c.repoURL(workspace, repo)+"/refs/branches", body)
	return err
}

// CommitFile commits a single file to the branch via the src endpoint
// (multipart form: commit message, target branch, one file part).
func (c *Client) CommitFile(ctx context.Context, workspace, repo, branch, message, filename, content string) error {
	internal.IncAPICall("commit_file")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("message", message); err != nil {
		return err
	}
	if err := form.WriteField("branch", branch); err != nil {
		return err
	}
	part, err := form.CreateFormFile(filename, filename)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(part, content); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.repoURL(workspace, repo)+"/src", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	_, err = c.do(req)
	return err
}

// OpenPullRequest opens a pull request and returns the provider's raw
// response.
func (c *Client) OpenPullRequest(ctx context.Context, workspace, repo string, opts PullRequestOptions) (json.RawMessage, error) {
	internal.IncAPICall("open_pull_request")
	body := map[string]interface{}{
		"title": opts.Title,
		"source": map[string]interface{}{
			"branch": map[string]string{"name": opts.SourceBranch},
		},
		"destination": map[string]interface{}{
			"branch": map[string]string{"name": opts.DestinationBranch},
		},
		"close_source_branch": opts.CloseSourceBranch,
		"reason":              opts.Reason,
	}
	return c.doJSON(ctx, http.MethodPost, c.repoURL(workspace, repo)+"/pullrequests", body)
}

// DeleteRepository removes the repository.
func (c *Client) DeleteRepository(ctx context.Context, workspace, repo string) error {
	internal.IncAPICall("delete_repository")
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.repoURL(workspace, repo), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

func (c *Client) repoURL(workspace, repo string) string {
	return fmt.Sprintf("%s/repositories/%s/%s", c.baseURL, workspace, repo)
}

func (c *Client) doJSON(ctx context.Context, method, url string, body interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s failed: %s", req.Method, req.URL.Path, resp.Status)
	}
	return json.RawMessage(raw), nil
}
