package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/frasergibbs/linear-agent-v0/internal/domain"
	"github.com/frasergibbs/linear-agent-v0/internal/linear"
	"github.com/frasergibbs/linear-agent-v0/internal/plan"
	"github.com/frasergibbs/linear-agent-v0/internal/store"
	"github.com/frasergibbs/linear-agent-v0/internal/v0"
	"github.com/frasergibbs/linear-agent-v0/internal/vercel"
)

type fakeActivities struct {
	activities  []linear.ActivityContent
	planUpdates []plan.Plan
	linkUpdates [][]domain.ExternalLink
	failOnType  string
}

func (f *fakeActivities) CreateActivity(_ context.Context, _ string, content linear.ActivityContent) error {
	if f.failOnType != "" && content.Type == f.failOnType {
		return errors.New("activity api down")
	}
	f.activities = append(f.activities, content)
	return nil
}

func (f *fakeActivities) UpdateSessionPlan(_ context.Context, _ string, steps plan.Plan) error {
	f.planUpdates = append(f.planUpdates, steps)
	return nil
}

func (f *fakeActivities) UpdateSessionExternalLinks(_ context.Context, _ string, links []domain.ExternalLink) error {
	f.linkUpdates = append(f.linkUpdates, links)
	return nil
}

func (f *fakeActivities) kinds() []string {
	out := make([]string, 0, len(f.activities))
	for _, a := range f.activities {
		out = append(out, a.Type)
	}
	return out
}

type fakeGenerator struct {
	createCalls int
	initCalls   int
	sendCalls   int
	lastPrompt  string
	lastRepoURL string
	lastMessage string
	failCreate  bool
	failSend    bool
	nextVersion string
}

func (f *fakeGenerator) CreateChat(_ context.Context, req v0.CreateChatRequest) (*v0.Chat, error) {
	f.createCalls++
	f.lastPrompt = req.Message
	if f.failCreate {
		return nil, errors.New("v0 unavailable")
	}
	return f.chat(), nil
}

func (f *fakeGenerator) InitFromRepository(_ context.Context, repoURL, _ string) (*v0.Chat, error) {
	f.initCalls++
	f.lastRepoURL = repoURL
	return f.chat(), nil
}

func (f *fakeGenerator) SendMessage(_ context.Context, _, message string) (*v0.Chat, error) {
	f.sendCalls++
	f.lastMessage = message
	if f.failSend {
		return nil, errors.New("v0 unavailable")
	}
	return f.chat(), nil
}

func (f *fakeGenerator) FindOrCreateProject(_ context.Context, name, _ string) (*v0.Project, error) {
	return &v0.Project{ID: "prj-1", Name: name}, nil
}

func (f *fakeGenerator) chat() *v0.Chat {
	version := f.nextVersion
	if version == "" {
		version = "ver-1"
	}
	return &v0.Chat{
		ID:            "chat-1",
		WebURL:        "https://v0.dev/chat/chat-1",
		ProjectID:     "prj-1",
		LatestVersion: &v0.Version{ID: version},
	}
}

type fakeDeployer struct {
	calls      int
	lastChatID string
	fail       bool
}

func (f *fakeDeployer) CreateDeployment(_ context.Context, _, chatID, _ string) (*vercel.Deployment, error) {
	f.calls++
	f.lastChatID = chatID
	if f.fail {
		return nil, errors.New("deploy failed")
	}
	return &vercel.Deployment{ID: "dpl-1", URL: "https://app.vercel.app"}, nil
}

type harness struct {
	router     *Router
	repo       *store.MemoryStore
	activities *fakeActivities
	generator  *fakeGenerator
	deployer   *fakeDeployer
}

func newHarness() *harness {
	repo := store.NewMemory()
	activities := &fakeActivities{}
	generator := &fakeGenerator{}
	deployer := &fakeDeployer{}
	return &harness{
		router:     New(repo, activities, generator, deployer, nil),
		repo:       repo,
		activities: activities,
		generator:  generator,
		deployer:   deployer,
	}
}

func createdEvent(id string, session linear.AgentSession) linear.Event {
	session.ID = id
	return linear.Event{
		Type:   linear.EventTypeAgentSession,
		Action: linear.ActionCreated,
		Data:   linear.EventData{AgentSession: &session},
	}
}

func promptedEvent(id, prompt string, signals ...linear.Signal) linear.Event {
	session := linear.AgentSession{ID: id, PromptContext: prompt}
	if len(signals) > 0 {
		session.Guidance = &linear.Guidance{Signals: signals}
	}
	return linear.Event{
		Type:   linear.EventTypeAgentSession,
		Action: linear.ActionPrompted,
		Data:   linear.EventData{AgentSession: &session},
	}
}

func TestCreatedEndToEnd(t *testing.T) {
	h := newHarness()
	ev := createdEvent("S1", linear.AgentSession{
		Issue:         linear.Issue{Identifier: "ABC-1", Title: "Add login form"},
		PromptContext: "Build a login form",
	})

	result := h.router.Handle(context.Background(), ev)

	if !result.Success {
		t.Fatalf("Expected success, got %+v", result)
	}
	if result.ChatID != "chat-1" {
		t.Errorf("Expected chat id in result, got %q", result.ChatID)
	}

	if len(h.activities.activities) == 0 || h.activities.activities[0].Type != linear.ActivityThought {
		t.Fatalf("First emitted activity must be a thought, got %v", h.activities.kinds())
	}
	if h.generator.createCalls != 1 {
		t.Errorf("Expected exactly one create call, got %d", h.generator.createCalls)
	}
	if !strings.Contains(h.generator.lastPrompt, "Build a login form") {
		t.Errorf("Prompt should contain the prompt context, got %q", h.generator.lastPrompt)
	}
	if !strings.Contains(h.generator.lastPrompt, "ABC-1") {
		t.Errorf("Prompt should contain the issue identifier, got %q", h.generator.lastPrompt)
	}

	session, err := h.repo.GetSession(context.Background(), "S1")
	if err != nil || session == nil {
		t.Fatalf("Expected a persisted session, got %v, %v", session, err)
	}
	if session.GenerationChatID != "chat-1" {
		t.Errorf("Expected chat id persisted, got %q", session.GenerationChatID)
	}

	last := h.activities.activities[len(h.activities.activities)-1]
	if last.Type != linear.ActivityMessage || !strings.Contains(last.Body, session.ChatURL) {
		t.Errorf("Final activity should be a message with the chat URL, got %+v", last)
	}

	if len(h.activities.linkUpdates) != 1 {
		t.Fatalf("Expected one external-link update, got %d", len(h.activities.linkUpdates))
	}
	if h.activities.linkUpdates[0][0].URL != session.ChatURL {
		t.Errorf("Expected chat link published, got %+v", h.activities.linkUpdates[0])
	}
	if len(h.activities.planUpdates) != 1 {
		t.Errorf("Expected one plan update, got %d", len(h.activities.planUpdates))
	}
}

func TestCreatedIsIdempotent(t *testing.T) {
	h := newHarness()
	ev := createdEvent("S1", linear.AgentSession{
		Issue: linear.Issue{Identifier: "ABC-1", Title: "Add login form"},
	})

	first := h.router.Handle(context.Background(), ev)
	second := h.router.Handle(context.Background(), ev)

	if !first.Success || !second.Success {
		t.Fatalf("Both invocations should succeed: %+v, %+v", first, second)
	}
	if h.generator.createCalls != 1 {
		t.Errorf("Duplicate created event must not start a second chat, got %d create calls", h.generator.createCalls)
	}
	if second.ChatID != first.ChatID {
		t.Errorf("Short-circuit should return the existing chat id, got %q vs %q", second.ChatID, first.ChatID)
	}

	sessions, _ := h.repo.ListSessions(context.Background())
	if len(sessions) != 1 {
		t.Errorf("Expected exactly one persisted session, got %d", len(sessions))
	}
}

func TestCreatedImportsDetectedRepository(t *testing.T) {
	h := newHarness()
	ev := createdEvent("S1", linear.AgentSession{
		Issue: linear.Issue{
			Identifier:  "ABC-2",
			Title:       "Restyle dashboard",
			Description: "Code is at github.com/acme/dashboard.git",
		},
	})

	result := h.router.Handle(context.Background(), ev)

	if !result.Success {
		t.Fatalf("Expected success, got %+v", result)
	}
	if h.generator.initCalls != 1 || h.generator.createCalls != 0 {
		t.Errorf("Expected repository import, got init=%d create=%d", h.generator.initCalls, h.generator.createCalls)
	}
	if h.generator.lastRepoURL != "https://github.com/acme/dashboard" {
		t.Errorf("Expected normalized repo URL, got %q", h.generator.lastRepoURL)
	}

	session, _ := h.repo.GetSession(context.Background(), "S1")
	if session.SourceRepoURL != "https://github.com/acme/dashboard" {
		t.Errorf("Expected source repo persisted, got %q", session.SourceRepoURL)
	}
}

func TestCreatedWithAmbiguousSuggestionsAwaitsSelection(t *testing.T) {
	h := newHarness()
	ev := createdEvent("S1", linear.AgentSession{
		Issue: linear.Issue{Identifier: "ABC-3", Title: "New marketing page"},
		IssueRepositorySuggestions: []linear.RepositorySuggestion{
			{Owner: "acme", Name: "web"},
			{Owner: "acme", Name: "marketing"},
		},
	})

	result := h.router.Handle(context.Background(), ev)

	if !result.Success || !result.AwaitingSelection {
		t.Fatalf("Expected awaiting-selection result, got %+v", result)
	}
	if h.generator.createCalls+h.generator.initCalls != 0 {
		t.Error("No generation call should happen before the user picks a repository")
	}
	if session, _ := h.repo.GetSession(context.Background(), "S1"); session != nil {
		t.Error("No session should be persisted while awaiting selection")
	}

	var elicitation *linear.ActivityContent
	for i := range h.activities.activities {
		if h.activities.activities[i].Type == linear.ActivityElicitation {
			elicitation = &h.activities.activities[i]
		}
	}
	if elicitation == nil {
		t.Fatalf("Expected an elicitation activity, got %v", h.activities.kinds())
	}
	if len(elicitation.Signals) != 1 || elicitation.Signals[0].Key != "repository" {
		t.Fatalf("Expected a repository select signal, got %+v", elicitation.Signals)
	}
	options := elicitation.Signals[0].Options
	if len(options) != 2 || options[0].Key != "repo-0" || options[1].Label != "acme/marketing" {
		t.Errorf("Unexpected selection options: %+v", options)
	}
}

func TestSelectionRoundTrip(t *testing.T) {
	h := newHarness()
	created := createdEvent("S1", linear.AgentSession{
		Issue: linear.Issue{Identifier: "ABC-3", Title: "New marketing page"},
		IssueRepositorySuggestions: []linear.RepositorySuggestion{
			{Owner: "acme", Name: "web"},
			{Owner: "acme", Name: "marketing"},
		},
	})
	h.router.Handle(context.Background(), created)

	var options []linear.SelectOption
	for _, a := range h.activities.activities {
		if a.Type == linear.ActivityElicitation {
			options = a.Signals[0].Options
		}
	}
	if len(options) != 2 {
		t.Fatalf("Expected selection options, got %+v", options)
	}

	prompted := promptedEvent("S1", "", linear.Signal{Key: "repository", Value: options[1].Value})
	result := h.router.Handle(context.Background(), prompted)

	if !result.Success {
		t.Fatalf("Expected success, got %+v", result)
	}
	session, _ := h.repo.GetSession(context.Background(), "S1")
	if session == nil {
		t.Fatal("Expected a persisted session after selection")
	}
	if session.SourceRepoURL != options[1].Value {
		t.Errorf("Expected source repo %q, got %q", options[1].Value, session.SourceRepoURL)
	}
	if h.generator.initCalls != 1 {
		t.Errorf("Expected one repository import, got %d", h.generator.initCalls)
	}
}

func TestPromptedWithoutSessionFails(t *testing.T) {
	h := newHarness()

	result := h.router.Handle(context.Background(), promptedEvent("S9", "make it blue"))

	if result.Success {
		t.Fatalf("Expected failure, got %+v", result)
	}
	if h.generator.createCalls+h.generator.initCalls+h.generator.sendCalls != 0 {
		t.Error("No generation call should happen without a session")
	}
	if h.deployer.calls != 0 {
		t.Error("No deployment call should happen without a session")
	}

	kinds := h.activities.kinds()
	if kinds[len(kinds)-1] != linear.ActivityError {
		t.Errorf("Expected a user-visible error activity, got %v", kinds)
	}
}

func TestPromptedRefinement(t *testing.T) {
	h := newHarness()
	h.router.Handle(context.Background(), createdEvent("S1", linear.AgentSession{
		Issue: linear.Issue{Identifier: "ABC-1", Title: "Add login form"},
	}))

	h.generator.nextVersion = "ver-2"
	result := h.router.Handle(context.Background(), promptedEvent("S1", "make the button blue"))

	if !result.Success {
		t.Fatalf("Expected success, got %+v", result)
	}
	if h.generator.sendCalls != 1 {
		t.Errorf("Expected one continue-conversation call, got %d", h.generator.sendCalls)
	}
	if h.generator.lastMessage != "make the button blue" {
		t.Errorf("Expected the prompt forwarded verbatim, got %q", h.generator.lastMessage)
	}

	session, _ := h.repo.GetSession(context.Background(), "S1")
	if session.LatestVersionID != "ver-2" {
		t.Errorf("Expected latest version updated, got %q", session.LatestVersionID)
	}
	if h.deployer.calls != 0 {
		t.Error("Refinement must not trigger a deployment")
	}
}

func TestDeployCommand(t *testing.T) {
	h := newHarness()
	h.router.Handle(context.Background(), createdEvent("S1", linear.AgentSession{
		Issue: linear.Issue{Identifier: "ABC-1", Title: "Add login form"},
	}))

	result := h.router.Handle(context.Background(), promptedEvent("S1", "please deploy this now"))

	if !result.Success {
		t.Fatalf("Expected success, got %+v", result)
	}
	if h.deployer.calls != 1 {
		t.Fatalf("Expected exactly one deployment call, got %d", h.deployer.calls)
	}
	if result.DeploymentURL != "https://app.vercel.app" {
		t.Errorf("Expected deployment URL in result, got %q", result.DeploymentURL)
	}

	session, _ := h.repo.GetSession(context.Background(), "S1")
	if session.DeploymentURL != "https://app.vercel.app" {
		t.Errorf("Expected deployment URL persisted, got %q", session.DeploymentURL)
	}
	if h.generator.sendCalls != 0 {
		t.Error("A deploy command must not be forwarded as refinement feedback")
	}
}

func TestDeployWordMatchIsSimple(t *testing.T) {
	// The classifier is a bare whole-word match; negations still
	// count as a deploy command and that has to stay consistent.
	h := newHarness()
	h.router.Handle(context.Background(), createdEvent("S1", linear.AgentSession{
		Issue: linear.Issue{Identifier: "ABC-1", Title: "Add login form"},
	}))

	h.router.Handle(context.Background(), promptedEvent("S1", "redeploy the styling, don't deploy yet"))

	if h.deployer.calls != 1 {
		t.Errorf("Whole-word match should classify this as a deploy command, got %d calls", h.deployer.calls)
	}
}

func TestDeployLinksAreAdditive(t *testing.T) {
	h := newHarness()
	h.router.Handle(context.Background(), createdEvent("S1", linear.AgentSession{
		Issue: linear.Issue{Identifier: "ABC-1", Title: "Add login form"},
	}))
	h.router.Handle(context.Background(), promptedEvent("S1", "deploy"))

	if len(h.activities.linkUpdates) != 2 {
		t.Fatalf("Expected two link updates, got %d", len(h.activities.linkUpdates))
	}
	final := h.activities.linkUpdates[1]
	if len(final) != 2 {
		t.Fatalf("Expected chat and deployment links, got %+v", final)
	}
	if final[0].Label != chatLinkLabel || final[1].Label != deploymentLinkLabel {
		t.Errorf("Expected chat link first and deployment link second, got %+v", final)
	}
	seen := map[string]bool{}
	for _, l := range final {
		if seen[l.URL] {
			t.Errorf("Duplicate link %q", l.URL)
		}
		seen[l.URL] = true
	}
}

func TestIgnoredEventIsNoOp(t *testing.T) {
	h := newHarness()

	result := h.router.Handle(context.Background(), linear.Event{Type: "Issue", Action: "update"})

	if !result.Success || !result.Ignored {
		t.Fatalf("Expected ignored result, got %+v", result)
	}
	if len(h.activities.activities) != 0 {
		t.Error("Ignored events must not emit activities")
	}
}

func TestMalformedEventHasNoSideEffects(t *testing.T) {
	h := newHarness()

	result := h.router.Handle(context.Background(), linear.Event{
		Type:   linear.EventTypeAgentSession,
		Action: linear.ActionCreated,
	})

	if result.Success {
		t.Fatalf("Expected failure for malformed event, got %+v", result)
	}
	if len(h.activities.activities) != 0 || h.generator.createCalls != 0 {
		t.Error("Malformed events must not cause external side effects")
	}
}

func TestGenerationFailureSurfacesErrorActivity(t *testing.T) {
	h := newHarness()
	h.generator.failCreate = true

	result := h.router.Handle(context.Background(), createdEvent("S1", linear.AgentSession{
		Issue: linear.Issue{Identifier: "ABC-1", Title: "Add login form"},
	}))

	if result.Success {
		t.Fatalf("Expected failure, got %+v", result)
	}
	kinds := h.activities.kinds()
	if kinds[len(kinds)-1] != linear.ActivityError {
		t.Errorf("Expected an error activity, got %v", kinds)
	}
	if !strings.Contains(result.Message, "v0 unavailable") {
		t.Errorf("Failure message should carry the upstream error, got %q", result.Message)
	}
	if session, _ := h.repo.GetSession(context.Background(), "S1"); session != nil {
		t.Error("No session should be persisted after a failed generation call")
	}
}

func TestErrorEmissionFailureIsSwallowed(t *testing.T) {
	h := newHarness()
	h.generator.failSend = true
	h.router.Handle(context.Background(), createdEvent("S1", linear.AgentSession{
		Issue: linear.Issue{Identifier: "ABC-1", Title: "Add login form"},
	}))

	// The error activity itself fails; the router must still return a
	// structured failure without panicking.
	h.activities.failOnType = linear.ActivityError
	result := h.router.Handle(context.Background(), promptedEvent("S1", "make it blue"))

	if result.Success {
		t.Fatalf("Expected failure, got %+v", result)
	}
}
