package router

import (
	"context"
	"time"

	"github.com/frasergibbs/linear-agent-v0/internal/domain"
	"github.com/frasergibbs/linear-agent-v0/internal/linear"
	"github.com/frasergibbs/linear-agent-v0/internal/store"
)

const deploymentLinkLabel = "Deployment"

// handlePrompted runs the prompted protocol: resolve a pending
// repository selection, or dispatch the free-text prompt to the
// deploy or refine branch.
func (r *Router) handlePrompted(ctx context.Context, s *linear.AgentSession) Result {
	ack := linear.ActivityContent{
		Type: linear.ActivityThought,
		Body: "Working on it...",
	}
	if err := r.emit(ctx, s.ID, ack); err != nil {
		return r.fail(ctx, s.ID, err, "Could not acknowledge the prompt")
	}

	session, err := r.repo.GetSession(ctx, s.ID)
	if err != nil {
		return r.fail(ctx, s.ID, err, "Could not read session state")
	}

	// A repository signal on a session that was never initialized is
	// the answer to a pending elicitation.
	if selected := s.SignalValue("repository"); selected != "" && session == nil {
		return r.initializeSession(ctx, s, selected, true)
	}

	if session == nil {
		r.emitErrorBestEffort(ctx, s.ID,
			"No active session for this delegation. Re-delegate the issue to start over.")
		return Result{Success: false, Message: "no active session"}
	}

	if isDeployCommand(s.PromptContext) {
		return r.handleDeploy(ctx, s, session)
	}
	return r.handleRefine(ctx, s, session)
}

// handleRefine forwards the prompt as refinement feedback to the
// existing v0 chat.
func (r *Router) handleRefine(ctx context.Context, s *linear.AgentSession, session *domain.Session) Result {
	start := time.Now()
	chat, err := r.generator.SendMessage(ctx, session.GenerationChatID, s.PromptContext)
	r.rec.RecordExternalCall("v0", time.Since(start), err)
	if err != nil {
		return r.fail(ctx, s.ID, err, "Could not send the feedback to v0")
	}

	upd := store.SessionUpdate{}
	if chat.LatestVersion != nil {
		upd.LatestVersionID = store.String(chat.LatestVersion.ID)
	}
	if chat.WebURL != "" {
		upd.ChatURL = store.String(chat.WebURL)
	}
	if err := r.repo.UpdateSession(ctx, s.ID, upd); err != nil {
		return r.fail(ctx, s.ID, err, "Could not record the new version")
	}

	chatURL := session.ChatURL
	if chat.WebURL != "" {
		chatURL = chat.WebURL
	}
	message := linear.ActivityContent{
		Type: linear.ActivityMessage,
		Body: "Applied your feedback in v0: " + chatURL,
	}
	if err := r.emit(ctx, s.ID, message); err != nil {
		return r.fail(ctx, s.ID, err, "Could not confirm the refinement")
	}

	return Result{Success: true, Message: "refinement applied", ChatID: session.GenerationChatID, ChatURL: chatURL}
}

// handleDeploy runs the deployment sub-protocol and publishes both the
// chat and deployment links. Link updates are additive over what was
// published before.
func (r *Router) handleDeploy(ctx context.Context, s *linear.AgentSession, session *domain.Session) Result {
	action := linear.ActivityContent{
		Type:      linear.ActivityAction,
		Action:    "Deploying",
		Parameter: "the latest version",
	}
	if err := r.emit(ctx, s.ID, action); err != nil {
		return r.fail(ctx, s.ID, err, "Could not start the deployment")
	}

	start := time.Now()
	deployment, err := r.deployer.CreateDeployment(ctx, session.ProjectID, session.GenerationChatID, session.LatestVersionID)
	r.rec.RecordExternalCall("vercel", time.Since(start), err)
	if err != nil {
		return r.fail(ctx, s.ID, err, "Deployment failed")
	}

	upd := store.SessionUpdate{DeploymentURL: store.String(deployment.URL)}
	if err := r.repo.UpdateSession(ctx, s.ID, upd); err != nil {
		return r.fail(ctx, s.ID, err, "Could not record the deployment")
	}

	links := make([]domain.ExternalLink, 0, 2)
	if session.ChatURL != "" {
		links = append(links, domain.ExternalLink{Label: chatLinkLabel, URL: session.ChatURL})
	}
	links = append(links, domain.ExternalLink{Label: deploymentLinkLabel, URL: deployment.URL})
	if err := r.updateLinks(ctx, s.ID, links); err != nil {
		return r.fail(ctx, s.ID, err, "Could not attach the deployment link")
	}

	message := linear.ActivityContent{
		Type: linear.ActivityMessage,
		Body: "Deployed: " + deployment.URL,
	}
	if err := r.emit(ctx, s.ID, message); err != nil {
		return r.fail(ctx, s.ID, err, "Could not confirm the deployment")
	}

	return Result{Success: true, Message: "deployed", DeploymentURL: deployment.URL}
}
