// Package annotate maps a review result onto file-scoped, zero-based line
// annotations for presentation layers. Map is a pure function.
package annotate

import (
	"path/filepath"
	"sort"

	"github.com/dshills/prreview/internal/review"
)

// Severity is the presentation tier of an annotation.
type Severity string

const (
	SeverityError       Severity = "Error"
	SeverityWarning     Severity = "Warning"
	SeverityInformation Severity = "Information"
)

// Category tags let callers clear or filter annotations by origin.
const (
	CategoryBlocking   = "blocking"
	CategorySuggestion = "suggestion"
	CategoryNote       = "note"
)

// Source is attached to every annotation.
const Source = "PR Review"

// Annotation is one message anchored to a zero-based line of a file.
type Annotation struct {
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Category string   `json:"category"`
	Source   string   `json:"source"`
}

type tier struct {
	issues   []review.Issue
	severity Severity
	category string
}

// Map converts result into annotations keyed by absolute file path. Within a
// file, blocking annotations precede suggestions, which precede notes.
func Map(result review.Result, root string) map[string][]Annotation {
	out := make(map[string][]Annotation)
	tiers := []tier{
		{result.BlockingIssues, SeverityError, CategoryBlocking},
		{result.Suggestions, SeverityWarning, CategorySuggestion},
		{result.Notes, SeverityInformation, CategoryNote},
	}
	for _, t := range tiers {
		for _, issue := range t.issues {
			path := resolve(root, issue.File)
			out[path] = append(out[path], Annotation{
				Line:     max(0, issue.Line-1),
				Severity: t.severity,
				Message:  message(issue),
				Category: t.category,
				Source:   Source,
			})
		}
	}
	return out
}

func message(issue review.Issue) string {
	if issue.SuggestedFix == "" {
		return issue.Description
	}
	return issue.Description + "\n\nSuggested fix: " + issue.SuggestedFix
}

func resolve(root, file string) string {
	p := filepath.FromSlash(file)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Counts totals annotations per severity.
type Counts struct {
	Errors       int `json:"errors"`
	Warnings     int `json:"warnings"`
	Informations int `json:"informations"`
}

// Count returns per-severity totals across all files.
func Count(m map[string][]Annotation) Counts {
	var c Counts
	for _, anns := range m {
		for _, a := range anns {
			switch a.Severity {
			case SeverityError:
				c.Errors++
			case SeverityWarning:
				c.Warnings++
			case SeverityInformation:
				c.Informations++
			}
		}
	}
	return c
}

// Files returns the annotated paths in sorted order.
func Files(m map[string][]Annotation) []string {
	files := make([]string, 0, len(m))
	for f := range m {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Clear returns a copy of m without annotations of the given category.
// Files left with no annotations are dropped.
func Clear(m map[string][]Annotation, category string) map[string][]Annotation {
	out := make(map[string][]Annotation, len(m))
	for path, anns := range m {
		var kept []Annotation
		for _, a := range anns {
			if a.Category != category {
				kept = append(kept, a)
			}
		}
		if len(kept) > 0 {
			out[path] = kept
		}
	}
	return out
}
