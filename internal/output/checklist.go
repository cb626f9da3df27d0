package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/prreview/internal/checklist"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(colorGreen)
	failStyle = lipgloss.NewStyle().Foreground(colorRed)
	runStyle  = lipgloss.NewStyle().Foreground(colorYellow)
)

// ChecklistLine renders one item as a single status line.
func ChecklistLine(item checklist.Item) string {
	var mark string
	switch item.Status {
	case checklist.Passed:
		mark = passStyle.Render("✓")
	case checklist.Failed:
		mark = failStyle.Render("✗")
	case checklist.Running:
		mark = runStyle.Render("…")
	default:
		mark = dimStyle.Render("○")
	}
	line := fmt.Sprintf("%s %s", mark, item.Label)
	switch {
	case item.Status == checklist.Failed && item.Error != "":
		line += dimStyle.Render(" - " + item.Error)
	case item.Skipped:
		line += dimStyle.Render(" (skipped: no command available)")
	case item.Command != "":
		line += dimStyle.Render(" (" + item.Command + ")")
	}
	return line
}

// WriteChecklist prints every item followed by a pass/fail summary.
func WriteChecklist(w io.Writer, items []checklist.Item) error {
	ew := &errWriter{w: w}
	ew.println(titleStyle.Render("Pre-PR Checklist"))
	for _, item := range items {
		ew.println("  " + ChecklistLine(item))
	}
	s := checklist.Summarize(items)
	ew.printf("\n%d/%d checks passed", s.Passed, s.Total)
	if s.Failed > 0 {
		ew.printf(", %s", failStyle.Render(fmt.Sprintf("%d failed", s.Failed)))
	}
	ew.println("")
	return ew.err
}
