// Package output formats review reports for display or machine consumption.
//
// Four formats are supported:
//   - text: human-readable terminal output styled with lipgloss (default)
//   - json: the full structured report
//   - markdown: PR-comment-friendly, one collapsible section per category
//   - sarif: SARIF v2.1.0 for code-scanning upload
//
// Writers render a [Report], built either from a fresh orchestrator outcome
// ([FromOutcome]) or from a stored review ([FromRecord]). Checklist runs are
// printed with [WriteChecklist].
package output
