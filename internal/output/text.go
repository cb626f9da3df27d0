package output

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/prreview/internal/annotate"
	"github.com/dshills/prreview/internal/gitctx"
	"github.com/dshills/prreview/internal/review"
	"github.com/dshills/prreview/internal/sizegate"
)

var (
	colorRed    = lipgloss.Color("#ff5555")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorGreen  = lipgloss.Color("#50fa7b")
	colorBlue   = lipgloss.Color("#8be9fd")
	colorDim    = lipgloss.Color("#6272a4")

	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)
)

func riskStyle(r review.RiskLevel) lipgloss.Style {
	switch r {
	case review.RiskHigh:
		return lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	case review.RiskMedium:
		return lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	default:
		return lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	}
}

func categoryStyle(key string) lipgloss.Style {
	switch key {
	case annotate.CategoryBlocking:
		return lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	case annotate.CategorySuggestion:
		return lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	default:
		return lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	}
}

func categoryIcon(key string) string {
	switch key {
	case annotate.CategoryBlocking:
		return "[!!]"
	case annotate.CategorySuggestion:
		return "[!]"
	default:
		return "[-]"
	}
}

// TextWriter outputs a human-readable terminal report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *Report) error {
	ew := &errWriter{w: w}
	res := report.Result

	ew.println(titleStyle.Render("PR Review"))
	if report.Branch != "" {
		ew.printf("Branch: %s -> %s\n", report.Branch, report.Base)
	}
	provider := report.Provider
	if report.Model != "" {
		provider += " (" + report.Model + ")"
	}
	ew.printf("Provider: %s\n", provider)
	ew.printf("Files: %d%s\n", report.Stats.Total, statusBreakdown(report.Stats))
	ew.println(strings.Repeat("─", 60))
	ew.printf("Risk: %s\n", riskStyle(res.RiskLevel).Render(string(res.RiskLevel)))
	for _, line := range wrapText(res.Summary, 70) {
		ew.printf("  %s\n", line)
	}
	ew.printf("Findings: %d blocking, %d suggestions, %d notes\n",
		len(res.BlockingIssues), len(res.Suggestions), len(res.Notes))
	ew.println(strings.Repeat("─", 60))

	if res.Total() == 0 {
		ew.println("\nNo issues found. Looks good!")
	}

	for _, c := range categories(res) {
		if len(c.issues) == 0 {
			continue
		}
		ew.printf("\n%s\n", categoryStyle(c.key).Render(categoryIcon(c.key)+" "+c.title))
		ew.println(strings.Repeat("─", 40))
		for _, issue := range c.issues {
			ew.printf("\n  %s:%d\n", issue.File, issue.Line)
			for _, line := range wrapText(issue.Description, 70) {
				ew.printf("    %s\n", line)
			}
			if issue.SuggestedFix != "" {
				ew.println("  Suggested fix:")
				for _, line := range wrapText(issue.SuggestedFix, 70) {
					ew.printf("    %s\n", line)
				}
			}
		}
	}

	if report.Inline && len(report.Annotations) > 0 {
		ew.printf("\n%s\n", titleStyle.Render("Annotations"))
		for _, path := range annotate.Files(report.Annotations) {
			name := relPath(report.Root, path)
			for _, a := range report.Annotations[path] {
				first, _, _ := strings.Cut(a.Message, "\n")
				ew.printf("  %s:%d: %s: %s\n", name, a.Line+1, strings.ToLower(string(a.Severity)), first)
			}
		}
	}

	ew.printf("\n%s\n", dimStyle.Render(strings.Repeat("─", 60)))
	if report.Duration > 0 {
		done := "Completed in " + report.Duration.Round(time.Millisecond).String()
		if report.Cached {
			done += " (cached response)"
		}
		ew.println(dimStyle.Render(done))
	}
	return ew.err
}

func relPath(root, path string) string {
	if root == "" {
		return path
	}
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// statusBreakdown renders non-zero per-status counts, e.g. " (2 Modified, 1 Added)".
func statusBreakdown(c sizegate.Counts) string {
	var parts []string
	for _, st := range gitctx.Statuses {
		if n := c.Get(st); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, st))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
