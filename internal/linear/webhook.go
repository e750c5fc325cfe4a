// Package linear provides types and a client for the Linear agent
// session protocol: inbound webhook payloads, signature verification,
// and the GraphQL calls that surface agent activity back into Linear.
package linear

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Recognized webhook event type and actions.
const (
	EventTypeAgentSession = "AgentSessionEvent"
	ActionCreated         = "created"
	ActionPrompted        = "prompted"
)

// Event is the inbound webhook payload envelope.
type Event struct {
	Type   string    `json:"type"`
	Action string    `json:"action"`
	Data   EventData `json:"data"`
}

// EventData carries the event-type-specific body.
type EventData struct {
	AgentSession *AgentSession `json:"agentSession,omitempty"`
}

// AgentSession is Linear's lifecycle object for a delegation.
type AgentSession struct {
	ID                         string                 `json:"id"`
	Issue                      Issue                  `json:"issue"`
	PromptContext              string                 `json:"promptContext,omitempty"`
	IssueRepositorySuggestions []RepositorySuggestion `json:"issueRepositorySuggestions,omitempty"`
	Guidance                   *Guidance              `json:"guidance,omitempty"`
}

// Issue is the issue the agent was delegated on.
type Issue struct {
	Identifier  string  `json:"identifier"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Labels      []Label `json:"labels,omitempty"`
}

// Label is an issue label.
type Label struct {
	Name string `json:"name"`
}

// RepositorySuggestion is one repository candidate attached to the issue.
type RepositorySuggestion struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
}

// Guidance carries user responses to elicitation prompts.
type Guidance struct {
	Signals []Signal `json:"signals,omitempty"`
}

// Signal is a single key/value response from the user.
type Signal struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SignalValue returns the value of the first signal with the given
// key, or "" when the session carries no such signal.
func (s *AgentSession) SignalValue(key string) string {
	if s.Guidance == nil {
		return ""
	}
	for _, sig := range s.Guidance.Signals {
		if sig.Key == key {
			return sig.Value
		}
	}
	return ""
}

// VerifySignature checks the webhook HMAC-SHA256 signature over the
// raw request body using a constant-time compare.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
