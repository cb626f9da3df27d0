package precommit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	markerStart = "# >>> prreview pre-commit hook >>>"
	markerEnd   = "# <<< prreview pre-commit hook <<<"
)

// HookPath returns the pre-commit hook file inside hooksDir.
func HookPath(hooksDir string) string {
	return filepath.Join(hooksDir, "pre-commit")
}

// Script returns the marker-delimited hook section. Exit 1 from the review
// blocks the commit; any other failure only warns.
func Script(command string) string {
	var b strings.Builder
	b.WriteString(markerStart + "\n")
	b.WriteString(command + "\n")
	b.WriteString("PRREVIEW_EXIT=$?\n")
	b.WriteString("if [ $PRREVIEW_EXIT -eq 1 ]; then\n")
	b.WriteString("  echo \"prreview: blocking issues found, commit blocked (use --no-verify to skip)\"\n")
	b.WriteString("  exit 1\n")
	b.WriteString("elif [ $PRREVIEW_EXIT -ge 2 ]; then\n")
	b.WriteString("  echo \"prreview: review failed (exit $PRREVIEW_EXIT), allowing commit\"\n")
	b.WriteString("fi\n")
	b.WriteString(markerEnd + "\n")
	return b.String()
}

// Install writes or refreshes the prreview section of the hook at path,
// preserving any other content.
func Install(path, command string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading hook file: %w", err)
	}

	section := Script(command)
	var content string
	if len(existing) == 0 {
		content = "#!/bin/sh\n" + section
	} else {
		content = replaceSection(string(existing), section)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return fmt.Errorf("writing hook file: %w", err)
	}
	return nil
}

// Uninstall removes the prreview section. The file is deleted when nothing
// but a shebang remains. It reports whether a section was found.
func Uninstall(path string) (bool, error) {
	existing, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading hook file: %w", err)
	}
	if !strings.Contains(string(existing), markerStart) {
		return false, nil
	}

	content := removeSection(string(existing))
	switch strings.TrimSpace(content) {
	case "", "#!/bin/sh", "#!/bin/bash", "#!/usr/bin/env sh", "#!/usr/bin/env bash":
		if err := os.Remove(path); err != nil {
			return true, fmt.Errorf("removing hook file: %w", err)
		}
		return true, nil
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return true, fmt.Errorf("writing hook file: %w", err)
	}
	return true, nil
}

// Installed reports whether the hook at path carries a prreview section.
func Installed(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s := string(data)
	return strings.Contains(s, markerStart) && strings.Contains(s, markerEnd), nil
}

func replaceSection(existing, section string) string {
	start := strings.Index(existing, markerStart)
	end := strings.Index(existing, markerEnd)
	if start == -1 || end == -1 || end < start {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}
	after := strings.TrimPrefix(existing[end+len(markerEnd):], "\n")
	return existing[:start] + section + after
}

func removeSection(existing string) string {
	start := strings.Index(existing, markerStart)
	end := strings.Index(existing, markerEnd)
	if start == -1 || end == -1 || end < start {
		return existing
	}
	after := strings.TrimPrefix(existing[end+len(markerEnd):], "\n")
	return existing[:start] + after
}
