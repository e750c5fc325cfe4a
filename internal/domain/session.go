// Package domain contains core domain types for the agent orchestrator.
package domain

import (
	"time"
)

// Session is the local record correlating a Linear agent session to a
// v0 generation chat and, once deployed, a Vercel deployment.
type Session struct {
	TrackerSessionID string    `json:"tracker_session_id"`
	GenerationChatID string    `json:"generation_chat_id"`
	ProjectID        string    `json:"project_id,omitempty"`
	ChatURL          string    `json:"chat_url,omitempty"`
	DeploymentURL    string    `json:"deployment_url,omitempty"`
	SourceRepoURL    string    `json:"source_repo_url,omitempty"`
	LatestVersionID  string    `json:"latest_version_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasDeployment returns true if the session has been deployed at least once.
func (s *Session) HasDeployment() bool {
	return s.DeploymentURL != ""
}

// ExternalLink is a labeled URL surfaced on the tracker-side session.
type ExternalLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}
