package repodetect

import (
	"testing"
)

func TestDetectPrefersSuggestionsOverDescription(t *testing.T) {
	suggestions := []Suggestion{{Owner: "acme", Name: "storefront"}}
	description := "Related work lives in github.com/other/repo for context."

	result := Detect(description, suggestions)

	if result.Source != SourceSuggestions {
		t.Errorf("Expected source %q, got %q", SourceSuggestions, result.Source)
	}
	if result.RepoURL != "https://github.com/acme/storefront" {
		t.Errorf("Expected suggestion URL, got %q", result.RepoURL)
	}
	if len(result.Suggestions) != 1 {
		t.Errorf("Expected full suggestion list, got %d entries", len(result.Suggestions))
	}
}

func TestDetectUsesExplicitSuggestionURL(t *testing.T) {
	suggestions := []Suggestion{{Owner: "acme", Name: "storefront", URL: "https://github.com/acme/storefront.git"}}

	result := Detect("", suggestions)

	if result.RepoURL != "https://github.com/acme/storefront" {
		t.Errorf("Expected .git suffix stripped, got %q", result.RepoURL)
	}
}

func TestDetectFromDescription(t *testing.T) {
	tests := []struct {
		name        string
		description string
		wantURL     string
		wantSource  Source
	}{
		{
			name:        "plain url",
			description: "See https://github.com/acme/storefront for the current code",
			wantURL:     "https://github.com/acme/storefront",
			wantSource:  SourceDescription,
		},
		{
			name:        "git suffix stripped",
			description: "Clone github.com/acme/storefront.git first",
			wantURL:     "https://github.com/acme/storefront",
			wantSource:  SourceDescription,
		},
		{
			name:        "no repo",
			description: "Just build a login form",
			wantURL:     "",
			wantSource:  SourceNone,
		},
		{
			name:        "empty description",
			description: "",
			wantURL:     "",
			wantSource:  SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Detect(tt.description, nil)
			if result.RepoURL != tt.wantURL {
				t.Errorf("Expected URL %q, got %q", tt.wantURL, result.RepoURL)
			}
			if result.Source != tt.wantSource {
				t.Errorf("Expected source %q, got %q", tt.wantSource, result.Source)
			}
		})
	}
}

func TestNeedsSelection(t *testing.T) {
	if NeedsSelection(nil) {
		t.Error("No suggestions should not need selection")
	}
	if NeedsSelection([]Suggestion{{Owner: "a", Name: "b"}}) {
		t.Error("A single suggestion should not need selection")
	}
	if !NeedsSelection([]Suggestion{{Owner: "a", Name: "b"}, {Owner: "c", Name: "d"}}) {
		t.Error("Two suggestions should need selection")
	}
}

func TestFormatForSelection(t *testing.T) {
	suggestions := []Suggestion{
		{Owner: "acme", Name: "storefront"},
		{Owner: "acme", Name: "admin", URL: "https://github.com/acme/admin"},
	}

	options := FormatForSelection(suggestions)

	if len(options) != 2 {
		t.Fatalf("Expected 2 options, got %d", len(options))
	}
	if options[0].Key != "repo-0" || options[1].Key != "repo-1" {
		t.Errorf("Expected index keys, got %q, %q", options[0].Key, options[1].Key)
	}
	if options[0].Label != "acme/storefront" {
		t.Errorf("Expected owner/name label, got %q", options[0].Label)
	}
	if options[0].Value != "https://github.com/acme/storefront" {
		t.Errorf("Expected synthesized URL, got %q", options[0].Value)
	}
	if options[1].Value != "https://github.com/acme/admin" {
		t.Errorf("Expected explicit URL preserved, got %q", options[1].Value)
	}
}
