package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frasergibbs/linear-agent-v0/internal/domain"
	"github.com/frasergibbs/linear-agent-v0/internal/linear"
	"github.com/frasergibbs/linear-agent-v0/internal/plan"
	"github.com/frasergibbs/linear-agent-v0/internal/repodetect"
	"github.com/frasergibbs/linear-agent-v0/internal/store"
	"github.com/frasergibbs/linear-agent-v0/internal/v0"
)

const chatLinkLabel = "v0 Chat"

// handleCreated runs the creation protocol. The acknowledgment thought
// is the first network call made for the event; Linear expects it
// within ten seconds of delivery.
func (r *Router) handleCreated(ctx context.Context, s *linear.AgentSession) Result {
	ack := linear.ActivityContent{
		Type: linear.ActivityThought,
		Body: "Looking at " + s.Issue.Identifier + "...",
	}
	if err := r.emit(ctx, s.ID, ack); err != nil {
		return r.fail(ctx, s.ID, err, "Could not acknowledge the session")
	}

	// At-least-once delivery: a repeated created event short-circuits
	// on the existing row instead of starting a second chat.
	existing, err := r.repo.GetSession(ctx, s.ID)
	if err != nil {
		return r.fail(ctx, s.ID, err, "Could not read session state")
	}
	if existing != nil {
		slog.Info("Session already initialized, skipping duplicate created event",
			"session_id", s.ID, "chat_id", existing.GenerationChatID)
		return Result{
			Success: true,
			Message: "session already initialized",
			ChatID:  existing.GenerationChatID,
			ChatURL: existing.ChatURL,
		}
	}

	suggestions := toSuggestions(s.IssueRepositorySuggestions)
	if repodetect.NeedsSelection(suggestions) {
		return r.requestSelection(ctx, s, suggestions)
	}

	detection := repodetect.Detect(s.Issue.Description, suggestions)
	return r.initializeSession(ctx, s, detection.RepoURL, false)
}

// requestSelection suspends the flow with an elicitation until a later
// prompted event supplies the user's repository choice. No session is
// persisted yet.
func (r *Router) requestSelection(ctx context.Context, s *linear.AgentSession, suggestions []repodetect.Suggestion) Result {
	options := repodetect.FormatForSelection(suggestions)
	selectOptions := make([]linear.SelectOption, 0, len(options))
	for _, o := range options {
		selectOptions = append(selectOptions, linear.SelectOption{Key: o.Key, Label: o.Label, Value: o.Value})
	}

	elicitation := linear.ActivityContent{
		Type: linear.ActivityElicitation,
		Body: "This issue has multiple linked repositories. Which one should I start from?",
		Signals: []linear.ElicitationSignal{{
			Type:    "select",
			Key:     "repository",
			Label:   "Repository",
			Options: selectOptions,
		}},
	}
	if err := r.emit(ctx, s.ID, elicitation); err != nil {
		return r.fail(ctx, s.ID, err, "Could not request a repository selection")
	}

	planSteps := plan.BuildInitial(false, true)
	if err := r.updatePlan(ctx, s.ID, planSteps); err != nil {
		slog.Warn("Failed to publish plan for selection", "session_id", s.ID, "error", err)
	}

	return Result{Success: true, AwaitingSelection: true, Message: "awaiting repository selection"}
}

// initializeSession starts the v0 generation session, persists the
// local session row, and surfaces the chat link. Shared between the
// created protocol and the resolve-selection branch of prompted.
func (r *Router) initializeSession(ctx context.Context, s *linear.AgentSession, repoURL string, fromSelection bool) Result {
	projectName := s.Issue.Identifier
	start := time.Now()
	project, err := r.generator.FindOrCreateProject(ctx, projectName, s.Issue.Title)
	r.rec.RecordExternalCall("v0", time.Since(start), err)
	if err != nil {
		return r.fail(ctx, s.ID, err, "Could not prepare a v0 project")
	}

	var chat *v0.Chat
	if repoURL != "" {
		start = time.Now()
		chat, err = r.generator.InitFromRepository(ctx, repoURL, project.ID)
		r.rec.RecordExternalCall("v0", time.Since(start), err)
		if err != nil {
			return r.fail(ctx, s.ID, err, "Could not import the repository into v0")
		}
	} else {
		req := v0.CreateChatRequest{
			Message:      buildPrompt(s.Issue, s.PromptContext),
			ProjectID:    project.ID,
			ResponseMode: "async",
			ModelConfig:  modelForLabels(s.Issue.Labels),
		}
		start = time.Now()
		chat, err = r.generator.CreateChat(ctx, req)
		r.rec.RecordExternalCall("v0", time.Since(start), err)
		if err != nil {
			return r.fail(ctx, s.ID, err, "Could not start the v0 generation")
		}
	}

	session := &domain.Session{
		TrackerSessionID: s.ID,
		GenerationChatID: chat.ID,
		ProjectID:        project.ID,
		ChatURL:          chat.WebURL,
		SourceRepoURL:    repoURL,
	}
	if chat.LatestVersion != nil {
		session.LatestVersionID = chat.LatestVersion.ID
	}
	if err := r.repo.CreateSession(ctx, session); err != nil {
		if errors.Is(err, store.ErrSessionExists) {
			// Lost a race with a concurrent created event; the winner's
			// row stands.
			slog.Warn("Session row already present after generation call", "session_id", s.ID)
			return Result{Success: true, Message: "session already initialized", ChatID: chat.ID, ChatURL: chat.WebURL}
		}
		return r.fail(ctx, s.ID, err, "Could not persist the session")
	}

	links := []domain.ExternalLink{{Label: chatLinkLabel, URL: chat.WebURL}}
	if err := r.updateLinks(ctx, s.ID, links); err != nil {
		return r.fail(ctx, s.ID, err, "Could not attach the chat link")
	}

	hasRepo := repoURL != ""
	planSteps := plan.BuildInitial(hasRepo, fromSelection)
	planSteps = plan.MarkCurrent(planSteps, plan.Index(planSteps, plan.StepGenerate))
	if err := r.updatePlan(ctx, s.ID, planSteps); err != nil {
		return r.fail(ctx, s.ID, err, "Could not publish the plan")
	}

	body := "Started generating in v0: " + chat.WebURL +
		"\n\nReply here to refine the result, or say \"deploy\" to publish it."
	if fromSelection {
		body = "Importing " + repoURL + " into v0: " + chat.WebURL +
			"\n\nReply here to refine the result, or say \"deploy\" to publish it."
	}
	message := linear.ActivityContent{Type: linear.ActivityMessage, Body: body}
	if err := r.emit(ctx, s.ID, message); err != nil {
		return r.fail(ctx, s.ID, err, "Could not post the chat link")
	}

	return Result{Success: true, Message: "generation started", ChatID: chat.ID, ChatURL: chat.WebURL}
}

func (r *Router) updatePlan(ctx context.Context, sessionID string, steps plan.Plan) error {
	start := time.Now()
	err := r.activities.UpdateSessionPlan(ctx, sessionID, steps)
	r.rec.RecordExternalCall("linear", time.Since(start), err)
	return err
}

func (r *Router) updateLinks(ctx context.Context, sessionID string, links []domain.ExternalLink) error {
	start := time.Now()
	err := r.activities.UpdateSessionExternalLinks(ctx, sessionID, links)
	r.rec.RecordExternalCall("linear", time.Since(start), err)
	return err
}

func toSuggestions(in []linear.RepositorySuggestion) []repodetect.Suggestion {
	out := make([]repodetect.Suggestion, 0, len(in))
	for _, s := range in {
		out = append(out, repodetect.Suggestion{Owner: s.Owner, Name: s.Name, URL: s.URL})
	}
	return out
}
