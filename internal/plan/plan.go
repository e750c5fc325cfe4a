// Package plan computes checklist step-state transitions for the
// progress plan surfaced in the Linear activity timeline.
package plan

// Status is the state of a single plan step.
type Status string

const (
	// StatusPending indicates a step that has not started yet.
	StatusPending Status = "pending"
	// StatusCurrent indicates the step currently in progress.
	StatusCurrent Status = "current"
	// StatusCompleted indicates a finished step.
	StatusCompleted Status = "completed"
	// StatusFailed indicates a step that errored.
	StatusFailed Status = "failed"
)

// Step is one entry in the checklist.
type Step struct {
	Label  string `json:"label"`
	Status Status `json:"status"`
}

// Plan is an ordered checklist. At most one step is current at a time;
// every step before the current one is completed or failed.
type Plan []Step

// Well-known step labels. Index positions vary with the two build
// flags, so callers locate steps by label.
const (
	StepAnalyze   = "Analyze issue"
	StepSelection = "Await repository selection"
	StepImport    = "Import repository"
	StepGenerate  = "Generate UI"
	StepReview    = "Review and refine"
	StepDeploy    = "Deploy"
)

// BuildInitial produces the fixed-shape checklist for a new session.
// The analysis step is always pre-completed. A selection step appears
// only when multiple repository candidates need disambiguation; an
// import step appears whenever a repository is (or may be) involved.
func BuildInitial(hasRepo, needsSelection bool) Plan {
	p := Plan{{Label: StepAnalyze, Status: StatusCompleted}}

	if needsSelection {
		p = append(p, Step{Label: StepSelection, Status: StatusCurrent})
	}
	if hasRepo || needsSelection {
		status := StatusPending
		if hasRepo && !needsSelection {
			status = StatusCurrent
		}
		p = append(p, Step{Label: StepImport, Status: status})
	}

	generateStatus := StatusPending
	if !hasRepo && !needsSelection {
		generateStatus = StatusCurrent
	}
	p = append(p,
		Step{Label: StepGenerate, Status: generateStatus},
		Step{Label: StepReview, Status: StatusPending},
		Step{Label: StepDeploy, Status: StatusPending},
	)
	return p
}

// MarkCurrent returns a new plan with step index set to current and
// every earlier step forced to completed. Later steps are untouched.
// An out-of-range index returns an unmodified copy.
func MarkCurrent(p Plan, index int) Plan {
	out := clone(p)
	if index < 0 || index >= len(out) {
		return out
	}
	for i := 0; i < index; i++ {
		out[i].Status = StatusCompleted
	}
	out[index].Status = StatusCurrent
	return out
}

// MarkCompleted returns a new plan with every step up to and including
// index set to completed.
func MarkCompleted(p Plan, index int) Plan {
	out := clone(p)
	if index < 0 {
		return out
	}
	if index >= len(out) {
		index = len(out) - 1
	}
	for i := 0; i <= index; i++ {
		out[i].Status = StatusCompleted
	}
	return out
}

// MarkFailed returns a new plan with step index set to failed.
// Unrelated steps are untouched.
func MarkFailed(p Plan, index int) Plan {
	out := clone(p)
	if index < 0 || index >= len(out) {
		return out
	}
	out[index].Status = StatusFailed
	return out
}

// Index returns the position of the step with the given label, or -1.
func Index(p Plan, label string) int {
	for i, step := range p {
		if step.Label == label {
			return i
		}
	}
	return -1
}

func clone(p Plan) Plan {
	out := make(Plan, len(p))
	copy(out, p)
	return out
}
