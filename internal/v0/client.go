// Package v0 provides a client for the v0 Platform API: UI generation
// chats, refinement messages, and project management.
package v0

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

// Model identifiers by capability tier.
const (
	ModelSmall  = "v0-1.5-sm"
	ModelMedium = "v0-1.5-md"
	ModelLarge  = "v0-1.5-lg"
)

// ModelConfig selects a generation model and its reasoning mode.
type ModelConfig struct {
	ModelID  string `json:"modelId"`
	Thinking bool   `json:"thinking,omitempty"`
}

// CreateChatRequest starts a from-scratch generation chat.
type CreateChatRequest struct {
	Message      string       `json:"message"`
	System       string       `json:"system,omitempty"`
	ProjectID    string       `json:"projectId,omitempty"`
	ResponseMode string       `json:"responseMode,omitempty"`
	ModelConfig  *ModelConfig `json:"modelConfiguration,omitempty"`
}

// Chat is a generation conversation.
type Chat struct {
	ID            string   `json:"id"`
	WebURL        string   `json:"webUrl"`
	ProjectID     string   `json:"projectId,omitempty"`
	LatestVersion *Version `json:"latestVersion,omitempty"`
}

// Version is one generated iteration within a chat.
type Version struct {
	ID      string `json:"id"`
	DemoURL string `json:"demoUrl,omitempty"`
}

// Project groups related chats.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client talks to the v0 Platform API.
type Client struct {
	httpClient *http.Client
	apiKey     string
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

// NewClient creates a v0 API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateChat starts a new generation chat from a prompt.
func (c *Client) CreateChat(ctx context.Context, req CreateChatRequest) (*Chat, error) {
	var chat Chat
	if err := c.do(ctx, http.MethodPost, "/chats", req, &chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &chat, nil
}

// InitFromRepository starts a generation chat seeded from an existing
// source repository.
func (c *Client) InitFromRepository(ctx context.Context, repoURL, projectID string) (*Chat, error) {
	body := map[string]any{
		"type":       "repo",
		"repository": map[string]string{"url": repoURL},
	}
	if projectID != "" {
		body["projectId"] = projectID
	}

	var chat Chat
	if err := c.do(ctx, http.MethodPost, "/chats/init", body, &chat); err != nil {
		return nil, fmt.Errorf("init chat from repository: %w", err)
	}
	return &chat, nil
}

// SendMessage continues an existing chat with refinement feedback.
func (c *Client) SendMessage(ctx context.Context, chatID, message string) (*Chat, error) {
	body := map[string]string{"message": message}

	var chat Chat
	if err := c.do(ctx, http.MethodPost, "/chats/"+chatID+"/messages", body, &chat); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &chat, nil
}

// FindOrCreateProject returns the project with the given name,
// creating it if none exists.
func (c *Client) FindOrCreateProject(ctx context.Context, name, description string) (*Project, error) {
	var listing struct {
		Data []Project `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &listing); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	for _, p := range listing.Data {
		if p.Name == name {
			return &Project{ID: p.ID, Name: p.Name}, nil
		}
	}

	body := map[string]string{"name": name}
	if description != "" {
		body["description"] = description
	}
	var project Project
	if err := c.do(ctx, http.MethodPost, "/projects", body, &project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &project, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("v0 api returned status %d: %s", resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
