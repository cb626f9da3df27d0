package gitctx

import (
	"path/filepath"
	"strings"
)

// ExcludeDiff drops every file section whose path matches one of the glob
// patterns. Lock files and generated code are the usual candidates.
func ExcludeDiff(diff string, patterns []string) string {
	if len(patterns) == 0 {
		return diff
	}
	var kept []string
	for _, section := range splitDiffSections(diff) {
		path := sectionPath(section)
		if path == "" || !MatchesAny(path, patterns) {
			kept = append(kept, section)
		}
	}
	return strings.Join(kept, "")
}

// ExcludeFiles drops every file whose path matches one of the glob patterns.
func ExcludeFiles(files []ChangedFile, patterns []string) []ChangedFile {
	if len(patterns) == 0 {
		return files
	}
	var result []ChangedFile
	for _, f := range files {
		if !MatchesAny(f.Path, patterns) {
			result = append(result, f)
		}
	}
	return result
}

func splitDiffSections(diff string) []string {
	var sections []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

// sectionPath returns the new path of a file section, or the old path for
// deletions.
func sectionPath(section string) string {
	var oldPath string
	for _, line := range strings.Split(section, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ b/"):
			return strings.TrimPrefix(line, "+++ b/")
		case strings.HasPrefix(line, "--- a/"):
			oldPath = strings.TrimPrefix(line, "--- a/")
		case strings.HasPrefix(line, "@@"):
			return oldPath
		}
	}
	if oldPath != "" {
		return oldPath
	}
	// Binary and mode-only sections carry no ---/+++ headers.
	if first, _, _ := strings.Cut(section, "\n"); strings.HasPrefix(first, "diff --git a/") {
		if _, b, ok := strings.Cut(first, " b/"); ok {
			return b
		}
	}
	return ""
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok && strings.HasPrefix(path, dir+"/") {
			return true
		}
	}
	return false
}
