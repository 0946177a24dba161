package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sumire/cronboard/internal/domain"
)

var repositoryPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// WorkflowClient proxies GitHub Actions workflow calls on behalf of the session owner.
type WorkflowClient struct {
	apiBaseURL string
	base       *http.Client
	timeout    time.Duration
}

// NewWorkflowClient creates a WorkflowClient. An empty apiBaseURL targets api.github.com.
func NewWorkflowClient(apiBaseURL string, timeout time.Duration) *WorkflowClient {
	if apiBaseURL == "" {
		apiBaseURL = defaultGitHubAPIURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WorkflowClient{
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		base:       &http.Client{},
		timeout:    timeout,
	}
}

// DispatchRequest describes a workflow_dispatch trigger.
type DispatchRequest struct {
	Repository string
	WorkflowID string
	Ref        string
	Inputs     map[string]string
}

// List returns the workflows of repository.
func (c *WorkflowClient) List(ctx context.Context, accessToken, repository string) (*domain.WorkflowList, error) {
	if err := validateRepository(repository); err != nil {
		return nil, err
	}

	var list domain.WorkflowList
	path := fmt.Sprintf("/repos/%s/actions/workflows", repository)
	if err := c.do(ctx, accessToken, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("list workflows of %s: %w", repository, err)
	}
	return &list, nil
}

// Dispatch triggers a workflow run. Ref defaults to main.
func (c *WorkflowClient) Dispatch(ctx context.Context, accessToken string, req DispatchRequest) error {
	if err := validateRepository(req.Repository); err != nil {
		return err
	}
	if req.WorkflowID == "" {
		return &domain.ValidationError{Field: "workflow_id", Message: "is required"}
	}
	if req.Ref == "" {
		req.Ref = "main"
	}

	body := map[string]any{"ref": req.Ref}
	if len(req.Inputs) > 0 {
		body["inputs"] = req.Inputs
	}

	path := fmt.Sprintf("/repos/%s/actions/workflows/%s/dispatches", req.Repository, url.PathEscape(req.WorkflowID))
	if err := c.do(ctx, accessToken, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("dispatch workflow %s: %w", req.WorkflowID, err)
	}
	return nil
}

// SetEnabled enables or disables a workflow.
func (c *WorkflowClient) SetEnabled(ctx context.Context, accessToken, repository, workflowID string, enabled bool) error {
	if err := validateRepository(repository); err != nil {
		return err
	}
	if workflowID == "" {
		return &domain.ValidationError{Field: "workflow_id", Message: "is required"}
	}

	action := "disable"
	if enabled {
		action = "enable"
	}
	path := fmt.Sprintf("/repos/%s/actions/workflows/%s/%s", repository, url.PathEscape(workflowID), action)
	if err := c.do(ctx, accessToken, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("%s workflow %s: %w", action, workflowID, err)
	}
	return nil
}

func (c *WorkflowClient) do(ctx context.Context, accessToken, method, path string, in, out any) error {
	if accessToken == "" {
		return fmt.Errorf("%w: github access token required", domain.ErrUnauthorized)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", githubAccept)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.base),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readStatusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", domain.ErrUpstream, err)
		}
	}
	return nil
}

func validateRepository(repository string) error {
	if repository == "" {
		return &domain.ValidationError{Field: "repository", Message: "is required"}
	}
	if !repositoryPattern.MatchString(repository) {
		return &domain.ValidationError{Field: "repository", Message: "must look like owner/name"}
	}
	return nil
}
