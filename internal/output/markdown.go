package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dshills/prreview/internal/annotate"
	"github.com/dshills/prreview/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *Report) error {
	ew := &errWriter{w: w}
	res := report.Result

	ew.printf("## PR Review\n\n")
	ew.printf("**Risk level:** %s %s\n\n", mdRiskIcon(res.RiskLevel), res.RiskLevel)
	if res.Summary != "" {
		ew.printf("%s\n\n", res.Summary)
	}

	ew.printf("| Category | Count |\n")
	ew.printf("|----------|-------|\n")
	ew.printf("| Blocking | %d |\n", len(res.BlockingIssues))
	ew.printf("| Suggestions | %d |\n", len(res.Suggestions))
	ew.printf("| Notes | %d |\n\n", len(res.Notes))

	if res.Total() == 0 {
		ew.println("No issues found. :white_check_mark:")
		return ew.err
	}

	for _, c := range categories(res) {
		if len(c.issues) == 0 {
			continue
		}
		// Blocking issues stay expanded.
		open := ""
		if c.key == annotate.CategoryBlocking {
			open = " open"
		}
		ew.printf("<details%s>\n<summary>%s %s (%d)</summary>\n\n", open, mdCategoryIcon(c.key), c.title, len(c.issues))
		for _, issue := range c.issues {
			writeMarkdownIssue(ew, issue)
		}
		ew.printf("</details>\n\n")
	}

	if report.Duration > 0 {
		ew.printf("*Reviewed by %s in %s*\n", report.Provider, report.Duration.Round(time.Millisecond))
	}
	return ew.err
}

func writeMarkdownIssue(ew *errWriter, issue review.Issue) {
	ew.printf("**`%s:%d`**\n\n", issue.File, issue.Line)
	ew.printf("%s\n\n", issue.Description)
	if issue.SuggestedFix != "" {
		ew.printf("**Suggested fix:**\n\n")
		if looksLikeCode(issue.SuggestedFix) {
			ew.printf("```%s\n%s\n```\n\n", inferLang(issue.File), issue.SuggestedFix)
		} else {
			ew.printf("> %s\n\n", strings.ReplaceAll(issue.SuggestedFix, "\n", "\n> "))
		}
	}
	ew.printf("---\n\n")
}

// IssueMarkdown renders a single issue as a review comment body.
func IssueMarkdown(category string, issue review.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s**\n\n%s", mdCategoryIcon(category), categoryLabel(category), issue.Description)
	if issue.SuggestedFix != "" {
		if looksLikeCode(issue.SuggestedFix) {
			fmt.Fprintf(&b, "\n\n**Suggested fix:**\n\n```%s\n%s\n```", inferLang(issue.File), issue.SuggestedFix)
		} else {
			fmt.Fprintf(&b, "\n\n**Suggested fix:** %s", issue.SuggestedFix)
		}
	}
	return b.String()
}

func categoryLabel(key string) string {
	switch key {
	case annotate.CategoryBlocking:
		return "Blocking"
	case annotate.CategorySuggestion:
		return "Suggestion"
	default:
		return "Note"
	}
}

func mdRiskIcon(r review.RiskLevel) string {
	switch r {
	case review.RiskHigh:
		return ":red_circle:"
	case review.RiskMedium:
		return ":orange_circle:"
	default:
		return ":green_circle:"
	}
}

func mdCategoryIcon(key string) string {
	switch key {
	case annotate.CategoryBlocking:
		return ":red_circle:"
	case annotate.CategorySuggestion:
		return ":yellow_circle:"
	default:
		return ":information_source:"
	}
}

func looksLikeCode(s string) bool {
	codeIndicators := []string{
		"func ", "if ", "for ", "return ", "var ", "const ",
		"def ", "class ", "import ", "from ",
		"{", "}", "=>", "->", ":=", "==",
		"()", "[];",
	}
	for _, indicator := range codeIndicators {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}

var fenceLangs = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "tsx",
	".jsx":  "jsx",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".cs":   "csharp",
	".php":  "php",
	".sh":   "bash",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".tf":   "hcl",
}

func inferLang(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return fenceLangs[strings.ToLower(path[i:])]
	}
	return ""
}
