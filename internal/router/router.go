// Package router implements the session event router: the sole
// state-transition authority for a delegation's lifecycle. It
// classifies inbound webhook events, drives the Linear activity,
// v0 generation, and deployment side effects, and maintains the
// mapping between Linear session IDs and v0 chat identifiers.
package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/frasergibbs/linear-agent-v0/internal/domain"
	"github.com/frasergibbs/linear-agent-v0/internal/linear"
	"github.com/frasergibbs/linear-agent-v0/internal/metrics"
	"github.com/frasergibbs/linear-agent-v0/internal/plan"
	"github.com/frasergibbs/linear-agent-v0/internal/store"
	"github.com/frasergibbs/linear-agent-v0/internal/v0"
	"github.com/frasergibbs/linear-agent-v0/internal/vercel"
)

// ActivityService emits agent activities and session updates to Linear.
type ActivityService interface {
	CreateActivity(ctx context.Context, sessionID string, content linear.ActivityContent) error
	UpdateSessionPlan(ctx context.Context, sessionID string, steps plan.Plan) error
	UpdateSessionExternalLinks(ctx context.Context, sessionID string, links []domain.ExternalLink) error
}

// GenerationService drives the v0 generation conversation.
type GenerationService interface {
	CreateChat(ctx context.Context, req v0.CreateChatRequest) (*v0.Chat, error)
	InitFromRepository(ctx context.Context, repoURL, projectID string) (*v0.Chat, error)
	SendMessage(ctx context.Context, chatID, message string) (*v0.Chat, error)
	FindOrCreateProject(ctx context.Context, name, description string) (*v0.Project, error)
}

// DeploymentService deploys generated chat versions.
type DeploymentService interface {
	CreateDeployment(ctx context.Context, projectID, chatID, versionID string) (*vercel.Deployment, error)
}

// Result is the structured outcome of processing one event. No fault
// ever propagates past the router boundary; failures surface here and
// as error activities in the Linear timeline.
type Result struct {
	Success           bool   `json:"success"`
	Message           string `json:"message,omitempty"`
	Ignored           bool   `json:"ignored,omitempty"`
	AwaitingSelection bool   `json:"awaiting_selection,omitempty"`
	ChatID            string `json:"chat_id,omitempty"`
	ChatURL           string `json:"chat_url,omitempty"`
	DeploymentURL     string `json:"deployment_url,omitempty"`
}

// Router consumes inbound agent session events and executes the
// corresponding protocol against its collaborators.
type Router struct {
	repo       store.Repository
	activities ActivityService
	generator  GenerationService
	deployer   DeploymentService
	rec        *metrics.Recorder
}

// New creates a Router. All collaborators are injected; rec may be nil.
func New(repo store.Repository, activities ActivityService, generator GenerationService, deployer DeploymentService, rec *metrics.Recorder) *Router {
	return &Router{
		repo:       repo,
		activities: activities,
		generator:  generator,
		deployer:   deployer,
		rec:        rec,
	}
}

// Handle processes one inbound event. It never returns an error and
// never panics across the boundary; every outcome is a Result.
func (r *Router) Handle(ctx context.Context, ev linear.Event) Result {
	lane := classifyEvent(ev)

	var result Result
	switch lane {
	case laneIgnored:
		result = Result{Success: true, Ignored: true, Message: "ignored event " + ev.Type + "/" + ev.Action}
	case laneMalformed:
		slog.Warn("Malformed agent session event", "type", ev.Type, "action", ev.Action)
		result = Result{Success: false, Message: "malformed event: missing agentSession"}
	case laneCreated:
		result = r.handleCreated(ctx, ev.Data.AgentSession)
	case lanePrompted:
		result = r.handlePrompted(ctx, ev.Data.AgentSession)
	}

	r.rec.RecordEvent(lane.String(), resultStatus(result))
	return result
}

func resultStatus(res Result) string {
	if res.Success {
		return "ok"
	}
	return "error"
}

// emit sends one activity to Linear, recording call metrics.
func (r *Router) emit(ctx context.Context, sessionID string, content linear.ActivityContent) error {
	start := time.Now()
	err := r.activities.CreateActivity(ctx, sessionID, content)
	r.rec.RecordExternalCall("linear", time.Since(start), err)
	if err == nil {
		r.rec.RecordActivity(content.Type)
	}
	return err
}

// emitErrorBestEffort reports a failure into the timeline. A secondary
// failure while reporting is logged and swallowed, never re-thrown.
func (r *Router) emitErrorBestEffort(ctx context.Context, sessionID, message string) {
	err := r.emit(ctx, sessionID, linear.ActivityContent{
		Type: linear.ActivityError,
		Body: message,
	})
	if err != nil {
		slog.Error("Failed to emit error activity", "session_id", sessionID, "error", err)
	}
}

// fail is the shared error path: best-effort error activity, then a
// structured failure result.
func (r *Router) fail(ctx context.Context, sessionID string, err error, publicMsg string) Result {
	slog.Error("Protocol step failed", "session_id", sessionID, "error", err, "message", publicMsg)
	r.emitErrorBestEffort(ctx, sessionID, publicMsg+": "+err.Error())
	return Result{Success: false, Message: publicMsg + ": " + err.Error()}
}
