// Package repodetect extracts a candidate source-repository URL from
// agent session payload fields.
package repodetect

import (
	"fmt"
	"regexp"
	"strings"
)

// Source identifies where a detection result came from.
type Source string

const (
	// SourceSuggestions means the URL came from the platform's structured suggestion list.
	SourceSuggestions Source = "suggestions"
	// SourceDescription means the URL was scraped from the issue description.
	SourceDescription Source = "description"
	// SourceNone means no repository was detected.
	SourceNone Source = "none"
)

// Suggestion is one repository candidate provided by the platform.
type Suggestion struct {
	Owner string
	Name  string
	URL   string
}

// Result is the outcome of a detection pass. Suggestions carries the
// full candidate list so callers can present a choice when there is
// more than one.
type Result struct {
	RepoURL     string
	Source      Source
	Suggestions []Suggestion
}

// SelectionOption is a selectable entry for an elicitation prompt.
type SelectionOption struct {
	Key   string
	Label string
	Value string
}

var githubURLRe = regexp.MustCompile(`github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)`)

// Detect resolves a repository URL with a fixed precedence: the
// structured suggestion list wins over a github.com URL embedded in
// the issue description. First match wins, no fallthrough.
func Detect(description string, suggestions []Suggestion) Result {
	if len(suggestions) > 0 {
		return Result{
			RepoURL:     suggestionURL(suggestions[0]),
			Source:      SourceSuggestions,
			Suggestions: suggestions,
		}
	}

	if m := githubURLRe.FindStringSubmatch(description); m != nil {
		name := strings.TrimSuffix(m[2], ".git")
		return Result{
			RepoURL: fmt.Sprintf("https://github.com/%s/%s", m[1], name),
			Source:  SourceDescription,
		}
	}

	return Result{Source: SourceNone}
}

// NeedsSelection reports whether the suggestion list is ambiguous and
// the user must pick a repository before generation can start.
func NeedsSelection(suggestions []Suggestion) bool {
	return len(suggestions) > 1
}

// FormatForSelection turns suggestions into deterministic, index-keyed
// options for an elicitation signal. Input order is preserved.
func FormatForSelection(suggestions []Suggestion) []SelectionOption {
	options := make([]SelectionOption, 0, len(suggestions))
	for i, s := range suggestions {
		options = append(options, SelectionOption{
			Key:   fmt.Sprintf("repo-%d", i),
			Label: s.Owner + "/" + s.Name,
			Value: suggestionURL(s),
		})
	}
	return options
}

func suggestionURL(s Suggestion) string {
	if s.URL != "" {
		return strings.TrimSuffix(s.URL, ".git")
	}
	return fmt.Sprintf("https://github.com/%s/%s", s.Owner, s.Name)
}
