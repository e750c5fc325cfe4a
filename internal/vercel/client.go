// Package vercel provides a client for creating deployments of
// generated chat versions.
package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.v0.dev/v1"

// Deployment is the result of deploying a chat version.
type Deployment struct {
	ID  string `json:"id"`
	URL string `json:"webUrl"`
}

// Client talks to the deployment API.
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a deployment API client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		token:      token,
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateDeployment deploys a specific chat version to Vercel and
// returns the deployment URL.
func (c *Client) CreateDeployment(ctx context.Context, projectID, chatID, versionID string) (*Deployment, error) {
	body := map[string]string{
		"projectId": projectID,
		"chatId":    chatID,
		"versionId": versionID,
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/deployments", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("deployment api returned status %d: %s", resp.StatusCode, respBody)
	}

	var deployment Deployment
	if err := json.Unmarshal(respBody, &deployment); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &deployment, nil
}
