package review

import (
	"errors"
	"strings"
)

// ErrNoChanges is returned when there is nothing to review.
var ErrNoChanges = errors.New("no changes to review")

// RiskLevel is the coarse risk assigned to a whole change set.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ParseRiskLevel normalises s case-insensitively. Anything unrecognised is
// MEDIUM.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow
	case RiskHigh:
		return RiskHigh
	default:
		return RiskMedium
	}
}

// Issue is a single finding reported by the model. Line is 1-based and never
// below 1 once parsed.
type Issue struct {
	File         string `json:"file"`
	Line         int    `json:"line"`
	Description  string `json:"description"`
	SuggestedFix string `json:"suggestedFix,omitempty"`
}

// Result is the validated outcome of one review. The three issue slices are
// kept exactly as the model classified them; nothing is deduplicated across
// categories.
type Result struct {
	RiskLevel      RiskLevel `json:"riskLevel"`
	Summary        string    `json:"summary"`
	BlockingIssues []Issue   `json:"blockingIssues"`
	Suggestions    []Issue   `json:"suggestions"`
	Notes          []Issue   `json:"notes"`
}

// Total returns the number of issues across all categories.
func (r Result) Total() int {
	return len(r.BlockingIssues) + len(r.Suggestions) + len(r.Notes)
}

// HasBlocking reports whether any blocking issue was raised.
func (r Result) HasBlocking() bool {
	return len(r.BlockingIssues) > 0
}
