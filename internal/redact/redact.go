package redact

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const placeholder = "[REDACTED]"

type rule struct {
	name string
	re   *regexp.Regexp
}

// rules are regex heuristics for common secret shapes, most specific first.
var rules = []rule{
	{"private-key", regexp.MustCompile(`-----BEGIN\s+(?:RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`)},
	{"anthropic-key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai-key", regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9_-]{20,}`)},
	{"github-token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"slack-token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"google-api-key", regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)},
	{"aws-access-key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws-secret", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"bearer", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"connection-string", regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s:/@]+:[^\s@]+@`)},
	{"api-key", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{"assignment", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`)},
	{"hex-secret", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// DefaultPaths are files whose diff sections are withheld entirely.
var DefaultPaths = []string{"**/.env", "**/.env.*", "**/*.pem", "**/*.key", "**/id_rsa", "**/credentials.json"}

// Report counts what was removed, by rule name. Withheld files are counted
// under "path".
type Report map[string]int

// Total returns the number of redactions.
func (r Report) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

// Kinds returns the rule names that fired, sorted.
func (r Report) Kinds() []string {
	kinds := make([]string, 0, len(r))
	for k := range r {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	out, _ := scan(text, nil)
	return out
}

func scan(text string, rep Report) (string, Report) {
	if rep == nil {
		rep = Report{}
	}
	for _, r := range rules {
		text = r.re.ReplaceAllStringFunc(text, func(string) string {
			rep[r.name]++
			return placeholder
		})
	}
	return text, rep
}

// ShouldRedactPath checks if a file path matches any of the redaction path patterns.
func ShouldRedactPath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		// Also try matching just the filename for patterns like "**/.env"
		cleanPattern := strings.TrimPrefix(pattern, "**/")
		if cleanPattern != pattern {
			matched, err = filepath.Match(cleanPattern, filepath.Base(path))
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Diff redacts a unified diff before it leaves the machine. Sections for
// files matching paths keep their header but lose their hunks; every other
// section is scanned for secrets.
func Diff(diff string, paths []string) (string, Report) {
	rep := Report{}
	var b strings.Builder
	for _, section := range sections(diff) {
		if p := headerPath(section); p != "" && ShouldRedactPath(p, paths) {
			b.WriteString(withhold(section))
			rep["path"]++
			continue
		}
		var out string
		out, rep = scan(section, rep)
		b.WriteString(out)
	}
	return b.String(), rep
}

func sections(diff string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		if strings.HasPrefix(line, "diff --git ") && cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func headerPath(section string) string {
	first, _, _ := strings.Cut(section, "\n")
	if !strings.HasPrefix(first, "diff --git a/") {
		return ""
	}
	_, b, ok := strings.Cut(first, " b/")
	if !ok {
		return ""
	}
	return b
}

// withhold keeps the header lines of a section up to its first hunk.
func withhold(section string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(section, "\n") {
		if strings.HasPrefix(line, "@@") || strings.HasPrefix(line, "Binary files") {
			break
		}
		b.WriteString(line)
	}
	b.WriteString(placeholder + " (file content withheld by path policy)\n")
	return b.String()
}
