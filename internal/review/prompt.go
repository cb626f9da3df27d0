package review

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

const systemPrompt = `You are an expert code reviewer. Analyze the provided code changes and provide constructive feedback.

Your review should identify:
1. **Blocking Issues** - Critical problems that must be fixed before merging (bugs, security issues, breaking changes)
2. **Suggestions** - Improvements for code quality, performance, maintainability
3. **Notes** - Observations, questions, or minor points

For each issue, provide:
- File path and line number
- Severity (blocking, suggestion, note)
- Clear description of the issue
- Suggested fix (if applicable)

Assess the overall risk level: LOW, MEDIUM, or HIGH based on:
- Complexity of changes
- Potential for bugs
- Impact on existing functionality
- Test coverage

Return your response as a JSON object with this structure:
{
  "riskLevel": "LOW|MEDIUM|HIGH",
  "summary": "Brief overview of the changes",
  "blockingIssues": [
    {
      "file": "path/to/file.go",
      "line": 42,
      "description": "Issue description",
      "suggestedFix": "How to fix it"
    }
  ],
  "suggestions": [
    {
      "file": "path/to/file.go",
      "line": 15,
      "description": "Suggestion description",
      "suggestedFix": "Recommended approach"
    }
  ],
  "notes": [
    {
      "file": "path/to/file.go",
      "line": 8,
      "description": "Observation or question"
    }
  ]
}`

const describePrompt = `Based on the code changes provided, generate a comprehensive PR description with the following sections:

## Summary
Brief overview of what this PR accomplishes

## What Changed
- Bullet points of specific changes made

## Why
Explanation of the motivation and context

## How to Test
Step-by-step testing instructions

## Risk Level
LOW/MEDIUM/HIGH with justification

## Breaking Changes
List any breaking changes (or "None")

## Migration Notes
Any migration steps needed (or "N/A")

Format the response as markdown.`

// SystemPrompt returns the review system prompt, or custom when set.
func SystemPrompt(custom string) string {
	if strings.TrimSpace(custom) != "" {
		return custom
	}
	return systemPrompt
}

// BuildUserPrompt constructs the review prompt: a file manifest followed by
// the fenced diff.
func BuildUserPrompt(diff string, files []string, rules *Rules) string {
	var b strings.Builder

	b.WriteString("Review the following code changes:\n\n")
	writeManifest(&b, files)

	if langs := detectLanguages(files); len(langs) > 0 {
		fmt.Fprintf(&b, "**Languages:** %s\n\n", strings.Join(langs, ", "))
	}
	if section := BuildRulesPromptSection(rules); section != "" {
		b.WriteString(section)
		b.WriteString("\n")
	}

	writeDiff(&b, diff)
	b.WriteString("\n\nProvide your review following the JSON format specified.")
	return b.String()
}

// BuildDescribePrompt constructs the single-turn prompt for PR descriptions.
func BuildDescribePrompt(diff string, files []string) string {
	var b strings.Builder
	b.WriteString(describePrompt)
	b.WriteString("\n\nGenerate a PR description for these changes:\n\n")
	writeManifest(&b, files)
	writeDiff(&b, diff)
	return b.String()
}

// BuildStagedPrompt constructs the user prompt for a pre-commit review.
func BuildStagedPrompt(diff string) string {
	return `Review the following staged changes for commit.

Focus on:
1. Critical bugs and errors
2. Security vulnerabilities
3. Breaking changes
4. Code quality issues
5. Missing error handling

Staged Changes:
` + diff + `

Provide a thorough review focusing on issues that should block the commit.`
}

func writeManifest(b *strings.Builder, files []string) {
	fmt.Fprintf(b, "**Changed Files (%d):**\n", len(files))
	for _, f := range files {
		fmt.Fprintf(b, "- %s\n", f)
	}
	b.WriteString("\n")
}

func writeDiff(b *strings.Builder, diff string) {
	b.WriteString("**Diff:**\n```diff\n")
	b.WriteString(diff)
	b.WriteString("\n```")
}

var langMap = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript/React",
	".jsx":   "JavaScript/React",
	".rs":    "Rust",
	".java":  "Java",
	".rb":    "Ruby",
	".cpp":   "C++",
	".c":     "C",
	".h":     "C/C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".sql":   "SQL",
	".sh":    "Shell",
	".yaml":  "YAML",
	".yml":   "YAML",
	".json":  "JSON",
	".tf":    "Terraform",
}

// detectLanguages returns the sorted set of languages implied by file
// extensions.
func detectLanguages(files []string) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		lang, ok := langMap[strings.ToLower(filepath.Ext(f))]
		if ok && !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}
