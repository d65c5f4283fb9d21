// Package remote talks to the hosted SQL/function service a project can be
// linked to. The orchestrator treats every call here as best-effort: a failed
// statement or deploy is recorded and the pipeline moves on.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

// Client is the remote service surface the pipeline consumes.
type Client interface {
	// ExecuteSQL runs one statement against the project's linked database.
	ExecuteSQL(ctx context.Context, databaseProjectID, statement string) error
	// DeployFunction creates or replaces a hosted function.
	DeployFunction(ctx context.Context, databaseProjectID, name, content string) error
	// DeleteFunction tears down a hosted function.
	DeleteFunction(ctx context.Context, databaseProjectID, name string) error
	// SnapshotBranch records a database branch snapshot keyed to a version.
	SnapshotBranch(ctx context.Context, databaseProjectID, branchID, version string) error
}

// HTTPClient implements Client against a REST endpoint with bearer auth.
type HTTPClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewHTTPClient returns a client for the given endpoint.
func NewHTTPClient(endpoint, apiKey string) *HTTPClient {
	return &HTTPClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("remote service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (c *HTTPClient) delete(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("remote service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// ExecuteSQL implements Client.
func (c *HTTPClient) ExecuteSQL(ctx context.Context, databaseProjectID, statement string) error {
	url := fmt.Sprintf("%s/v1/projects/%s/database/query", c.endpoint, databaseProjectID)
	return c.post(ctx, url, map[string]string{"query": statement})
}

// DeployFunction implements Client.
func (c *HTTPClient) DeployFunction(ctx context.Context, databaseProjectID, name, content string) error {
	url := fmt.Sprintf("%s/v1/projects/%s/functions/%s/deploy", c.endpoint, databaseProjectID, name)
	return c.post(ctx, url, map[string]string{"body": content})
}

// DeleteFunction implements Client.
func (c *HTTPClient) DeleteFunction(ctx context.Context, databaseProjectID, name string) error {
	url := fmt.Sprintf("%s/v1/projects/%s/functions/%s", c.endpoint, databaseProjectID, name)
	return c.delete(ctx, url)
}

// SnapshotBranch implements Client.
func (c *HTTPClient) SnapshotBranch(ctx context.Context, databaseProjectID, branchID, version string) error {
	url := fmt.Sprintf("%s/v1/projects/%s/branches/%s/snapshots", c.endpoint, databaseProjectID, branchID)
	return c.post(ctx, url, map[string]string{"version": version})
}

// functionsPrefix marks the subtree whose entries are hosted functions.
const functionsPrefix = "supabase/functions/"

// IsDeployableUnit reports whether the relative path identifies (or lives
// inside) a hosted function.
func IsDeployableUnit(relPath string) bool {
	relPath = strings.TrimPrefix(relPath, "./")
	if !strings.HasPrefix(relPath, functionsPrefix) {
		return false
	}
	rest := strings.TrimPrefix(relPath, functionsPrefix)
	return rest != "" && rest != "."
}

// FunctionName derives the hosted function name from a relative path: the
// basename of the path when it is a directory, otherwise the basename of its
// parent directory.
func FunctionName(relPath string, isDir bool) string {
	relPath = strings.TrimSuffix(relPath, "/")
	if isDir {
		return path.Base(relPath)
	}
	return path.Base(path.Dir(relPath))
}
