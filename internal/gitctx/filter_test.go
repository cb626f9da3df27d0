package gitctx

import (
	"strings"
	"testing"
)

const twoFileDiff = `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
+import "fmt"
diff --git a/vendor/lib.go b/vendor/lib.go
--- a/vendor/lib.go
+++ b/vendor/lib.go
@@ -1,3 +1,4 @@
+package lib
`

func TestExcludeDiff(t *testing.T) {
	result := ExcludeDiff(twoFileDiff, []string{"vendor/**"})
	if strings.Contains(result, "vendor/lib.go") {
		t.Error("vendor/lib.go should be excluded")
	}
	if !strings.Contains(result, "+import \"fmt\"") {
		t.Error("main.go should be kept")
	}
	if ExcludeDiff(twoFileDiff, nil) != twoFileDiff {
		t.Error("no patterns should return the diff unchanged")
	}
}

func TestExcludeDiff_DeletedAndBinary(t *testing.T) {
	diff := `diff --git a/package-lock.json b/package-lock.json
deleted file mode 100644
--- a/package-lock.json
+++ /dev/null
@@ -1 +0,0 @@
-{}
diff --git a/dist/app.min.js b/dist/app.min.js
Binary files a/dist/app.min.js and b/dist/app.min.js differ
diff --git a/keep.go b/keep.go
--- a/keep.go
+++ b/keep.go
@@ -1 +1 @@
-a
+b
`
	result := ExcludeDiff(diff, []string{"package-lock.json", "dist/**"})
	if strings.Contains(result, "package-lock.json") || strings.Contains(result, "app.min.js") {
		t.Errorf("deleted and binary sections should be excluded:\n%s", result)
	}
	if !strings.HasPrefix(result, "diff --git a/keep.go") {
		t.Errorf("keep.go should remain:\n%s", result)
	}
}

func TestSplitDiffSections(t *testing.T) {
	sections := splitDiffSections(twoFileDiff)
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if strings.Join(sections, "") != twoFileDiff {
		t.Error("sections should reassemble into the original diff")
	}
}

func TestSectionPath(t *testing.T) {
	tests := []struct {
		section string
		want    string
	}{
		{"diff --git a/main.go b/main.go\n--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n", "main.go"},
		{"diff --git a/x.go b/x.go\n--- a/x.go\n+++ /dev/null\n@@ -1 +0,0 @@\n", "x.go"},
		{"diff --git a/img.png b/img.png\nBinary files differ\n", "img.png"},
		{"garbage\n", ""},
	}
	for _, tt := range tests {
		if got := sectionPath(tt.section); got != tt.want {
			t.Errorf("sectionPath(%q) = %q, want %q", tt.section, got, tt.want)
		}
	}
}

func TestExcludeFiles(t *testing.T) {
	files := []ChangedFile{
		{"main.go", StatusModified},
		{"vendor/lib.go", StatusAdded},
		{"pkg/util.go", StatusModified},
		{"dist/bundle.js", StatusBinary},
	}
	result := ExcludeFiles(files, []string{"vendor/**", "**/dist/**"})
	if len(result) != 2 || result[0].Path != "main.go" || result[1].Path != "pkg/util.go" {
		t.Errorf("ExcludeFiles = %v", result)
	}
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"vendor/lib.go", []string{"vendor/**"}, true},
		{"vendor/deep/lib.go", []string{"vendor/**"}, true},
		{"main.go", []string{"vendor/**"}, false},
		{"foo.gen.go", []string{"**/*.gen.go"}, true},
		{"pkg/foo.gen.go", []string{"**/*.gen.go"}, true},
		{"dist/bundle.js", []string{"**/dist/**"}, true},
		{"main.go", []string{"*.go"}, true},
		{"main.go", nil, false},
	}
	for _, tt := range tests {
		got := MatchesAny(tt.path, tt.patterns)
		if got != tt.want {
			t.Errorf("MatchesAny(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.want)
		}
	}
}
