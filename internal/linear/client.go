package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/frasergibbs/linear-agent-v0/internal/domain"
	"github.com/frasergibbs/linear-agent-v0/internal/plan"
)

const defaultEndpoint = "https://api.linear.app/graphql"

// Activity content types accepted by the agent activity API.
const (
	ActivityThought     = "thought"
	ActivityAction      = "action"
	ActivityMessage     = "message"
	ActivityError       = "error"
	ActivityElicitation = "elicitation"
)

// ActivityContent is the type-specific body of an emitted activity.
type ActivityContent struct {
	Type      string              `json:"type"`
	Body      string              `json:"body,omitempty"`
	Action    string              `json:"action,omitempty"`
	Parameter string              `json:"parameter,omitempty"`
	Signals   []ElicitationSignal `json:"signals,omitempty"`
}

// ElicitationSignal is a structured prompt-for-input attached to an
// elicitation activity.
type ElicitationSignal struct {
	Type    string         `json:"type"`
	Key     string         `json:"key"`
	Label   string         `json:"label"`
	Options []SelectOption `json:"options"`
}

// SelectOption is one selectable entry in an elicitation signal.
type SelectOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Client talks to the Linear GraphQL API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithEndpoint overrides the GraphQL endpoint (used in tests).
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Linear API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateActivity emits one agent activity into the session's timeline.
func (c *Client) CreateActivity(ctx context.Context, sessionID string, content ActivityContent) error {
	const mutation = `
		mutation AgentActivityCreate($input: AgentActivityCreateInput!) {
			agentActivityCreate(input: $input) { success }
		}`

	variables := map[string]any{
		"input": map[string]any{
			"agentSessionId": sessionID,
			"content":        content,
		},
	}

	var out struct {
		AgentActivityCreate struct {
			Success bool `json:"success"`
		} `json:"agentActivityCreate"`
	}
	if err := c.do(ctx, mutation, variables, &out); err != nil {
		return fmt.Errorf("create %s activity: %w", content.Type, err)
	}
	if !out.AgentActivityCreate.Success {
		return fmt.Errorf("create %s activity: linear reported failure", content.Type)
	}
	return nil
}

// UpdateSessionPlan replaces the session's plan with the full ordered
// step list. Linear expects replacement semantics, never a delta.
func (c *Client) UpdateSessionPlan(ctx context.Context, sessionID string, steps plan.Plan) error {
	const mutation = `
		mutation AgentSessionUpdate($id: String!, $input: AgentSessionUpdateInput!) {
			agentSessionUpdate(id: $id, input: $input) { success }
		}`

	variables := map[string]any{
		"id": sessionID,
		"input": map[string]any{
			"plan": map[string]any{"steps": steps},
		},
	}

	var out struct {
		AgentSessionUpdate struct {
			Success bool `json:"success"`
		} `json:"agentSessionUpdate"`
	}
	if err := c.do(ctx, mutation, variables, &out); err != nil {
		return fmt.Errorf("update session plan: %w", err)
	}
	if !out.AgentSessionUpdate.Success {
		return fmt.Errorf("update session plan: linear reported failure")
	}
	return nil
}

// UpdateSessionExternalLinks publishes the full list of external links
// on the session. Callers pass the union of all links so far.
func (c *Client) UpdateSessionExternalLinks(ctx context.Context, sessionID string, links []domain.ExternalLink) error {
	const mutation = `
		mutation AgentSessionUpdate($id: String!, $input: AgentSessionUpdateInput!) {
			agentSessionUpdate(id: $id, input: $input) { success }
		}`

	variables := map[string]any{
		"id": sessionID,
		"input": map[string]any{
			"externalLinks": links,
		},
	}

	var out struct {
		AgentSessionUpdate struct {
			Success bool `json:"success"`
		} `json:"agentSessionUpdate"`
	}
	if err := c.do(ctx, mutation, variables, &out); err != nil {
		return fmt.Errorf("update session external links: %w", err)
	}
	if !out.AgentSessionUpdate.Success {
		return fmt.Errorf("update session external links: linear reported failure")
	}
	return nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("linear api returned status %d: %s", resp.StatusCode, respBody)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("linear api error: %s", envelope.Errors[0].Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
