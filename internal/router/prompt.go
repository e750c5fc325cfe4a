package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/frasergibbs/linear-agent-v0/internal/linear"
	"github.com/frasergibbs/linear-agent-v0/internal/v0"
)

// deployCommandRe is a case-insensitive whole-word match. Known
// weakness: "don't deploy yet" still matches; no richer intent
// parsing is attempted.
var deployCommandRe = regexp.MustCompile(`(?i)\bdeploy\b`)

func isDeployCommand(text string) bool {
	return deployCommandRe.MatchString(text)
}

// buildPrompt formats the from-scratch generation prompt from the
// issue fields and the preformatted prompt context.
func buildPrompt(issue linear.Issue, promptContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", issue.Identifier, issue.Title)
	if issue.Description != "" {
		b.WriteString("\n")
		b.WriteString(issue.Description)
		b.WriteString("\n")
	}
	if promptContext != "" {
		b.WriteString("\n")
		b.WriteString(promptContext)
		b.WriteString("\n")
	}
	if len(issue.Labels) > 0 {
		names := make([]string, 0, len(issue.Labels))
		for _, l := range issue.Labels {
			names = append(names, l.Name)
		}
		b.WriteString("\nLabels: ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// modelForLabels derives the generation model tier from issue labels.
// Three tiers of monotonically increasing capability; the top tier
// also enables extended reasoning.
func modelForLabels(labels []linear.Label) *v0.ModelConfig {
	small := false
	for _, l := range labels {
		// The highest tier any label demands wins.
		if containsAny(l.Name, "complex", "epic", "large") {
			return &v0.ModelConfig{ModelID: v0.ModelLarge, Thinking: true}
		}
		if containsAny(l.Name, "simple", "small", "trivial") {
			small = true
		}
	}
	if small {
		return &v0.ModelConfig{ModelID: v0.ModelSmall}
	}
	return &v0.ModelConfig{ModelID: v0.ModelMedium}
}

func containsAny(name string, keywords ...string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
