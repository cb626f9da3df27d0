package review

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildUserPrompt(t *testing.T) {
	diff := "diff --git a/main.go b/main.go\n+++ b/main.go\n@@ -1,3 +1,4 @@\n+import \"fmt\"\n"
	files := []string{"main.go", "web/app.ts"}

	prompt := BuildUserPrompt(diff, files, nil)

	if !strings.HasPrefix(prompt, "Review the following code changes:\n\n**Changed Files (2):**\n- main.go\n- web/app.ts\n") {
		t.Errorf("Prompt should open with the file manifest:\n%s", prompt)
	}
	if !strings.Contains(prompt, "```diff\n"+diff+"\n```") {
		t.Error("Prompt should contain the fenced diff")
	}
	if !strings.Contains(prompt, "**Languages:** Go, TypeScript") {
		t.Error("Prompt should list detected languages")
	}
	if !strings.HasSuffix(prompt, "Provide your review following the JSON format specified.") {
		t.Error("Prompt should end with the format reminder")
	}
}

func TestBuildUserPrompt_WithRules(t *testing.T) {
	prompt := BuildUserPrompt("d", nil, &Rules{Focus: []string{"security"}})
	if !strings.Contains(prompt, "**Changed Files (0):**") {
		t.Error("Prompt should include an empty manifest")
	}
	if !strings.Contains(prompt, "Focus areas:** security") {
		t.Error("Prompt should include the rules section")
	}
}

func TestSystemPrompt_Custom(t *testing.T) {
	if got := SystemPrompt(""); !strings.Contains(got, `"blockingIssues"`) {
		t.Error("default system prompt should describe the JSON structure")
	}
	if got := SystemPrompt("be brief"); got != "be brief" {
		t.Errorf("SystemPrompt(custom) = %q, want the custom prompt verbatim", got)
	}
	if got := SystemPrompt("   "); got != systemPrompt {
		t.Error("blank custom prompt should fall back to the default")
	}
}

func TestBuildDescribePrompt(t *testing.T) {
	prompt := BuildDescribePrompt("+x", []string{"a.go"})
	for _, want := range []string{"## Summary", "## Migration Notes", "Generate a PR description for these changes:", "- a.go", "```diff\n+x\n```"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("describe prompt missing %q", want)
		}
	}
}

func TestBuildStagedPrompt(t *testing.T) {
	prompt := BuildStagedPrompt("+secret")
	if !strings.Contains(prompt, "Staged Changes:\n+secret\n") {
		t.Errorf("staged prompt should embed the diff:\n%s", prompt)
	}
	if !strings.Contains(prompt, "should block the commit") {
		t.Error("staged prompt should ask for blocking issues")
	}
}

func TestDetectLanguages(t *testing.T) {
	tests := []struct {
		files []string
		want  []string
	}{
		{[]string{"main.go", "util.go"}, []string{"Go"}},
		{[]string{"app.py"}, []string{"Python"}},
		{[]string{"index.ts", "app.tsx"}, []string{"TypeScript", "TypeScript/React"}},
		{[]string{"Main.GO"}, []string{"Go"}},
		{[]string{"README.md"}, nil},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, detectLanguages(tt.files)); diff != "" {
			t.Errorf("detectLanguages(%v) mismatch (-want +got):\n%s", tt.files, diff)
		}
	}
}
