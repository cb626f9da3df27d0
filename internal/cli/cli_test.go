package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/prreview/internal/config"
	"github.com/dshills/prreview/internal/github"
	"github.com/dshills/prreview/internal/gitctx"
	"github.com/dshills/prreview/internal/orchestrator"
	"github.com/dshills/prreview/internal/providers"
)

// resetFlags resets all package-level flag variables to their defaults.
func resetFlags() {
	flagVerbose = false
	flagLogLevel = ""
	flagBase = ""
	flagProvider = ""
	flagModel = ""
	flagFormat = "text"
	flagOut = ""
	flagRules = ""
	flagExclude = ""
	flagYes = false
	flagNoRedact = false
	flagNoCache = false
	flagChecklist = false
	flagRaw = false
	flagPR = 0
	flagGHOwner = ""
	flagGHRepo = ""
	flagGHRemote = "origin"
	flagGHDryRun = false
	flagRequestChanges = false
	hookCommand = defaultHookCommand
}

// execute runs the command tree with args and returns stdout, stderr and the
// exit code.
func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	resetFlags()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	code := runArgs(context.Background(), args)
	return stdout.String(), stderr.String(), code
}

// isolate points config and cache lookups at temp dirs and clears
// PRREVIEW_* variables from the environment.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "PRREVIEW_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	prev := interactive
	interactive = func() bool { return false }
	t.Cleanup(func() { interactive = prev })
}

type fakeReviewer struct {
	response string
	err      error
	reviews  int
	prompts  []string
}

func (f *fakeReviewer) Name() string { return "openai" }

func (f *fakeReviewer) Review(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.reviews++
	f.prompts = append(f.prompts, userPrompt)
	return f.response, f.err
}

func (f *fakeReviewer) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func useReviewer(t *testing.T, f *fakeReviewer) {
	t.Helper()
	prev := newReviewer
	newReviewer = func(config.Config) orchestrator.Reviewer { return f }
	t.Cleanup(func() { newReviewer = prev })
}

const blockingResponse = "```json\n" + `{
  "riskLevel": "HIGH",
  "summary": "Dereferences a nil handler.",
  "blockingIssues": [{"file": "main.go", "line": 3, "description": "nil dereference", "suggestedFix": "check h != nil"}],
  "suggestions": [],
  "notes": [{"file": "main.go", "line": 1, "description": "consider a package comment"}]
}` + "\n```"

// setupRepo creates a repository with a development branch holding a
// project config, then checks out feature with one modified and one new file.
func setupRepo(t *testing.T) (string, func(args ...string)) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	if runtime.GOOS == "windows" {
		t.Skip("checklist commands use POSIX true/false")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test",
			"GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test",
			"GIT_COMMITTER_EMAIL=test@test.com",
			"GIT_CONFIG_GLOBAL=/dev/null",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	write := func(name, content string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	run("init")
	run("checkout", "-b", "development")
	write("main.go", "package main\n\nfunc main() {}\n")
	write(config.ProjectFile, "[checklist]\nlint = [\"true\"]\nbuild = [\"true\"]\ntests = [\"false\"]\n")
	run("add", "-A")
	run("commit", "-m", "init")

	run("checkout", "-b", "feature")
	write("main.go", "package main\n\nfunc main() { var h *int; _ = *h }\n")
	write("extra.go", "package main\n")
	run("add", "extra.go")

	testChdir(t, dir)
	return dir, run
}

func TestSplitComma(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"single value", "foo", []string{"foo"}},
		{"multiple values", "a,b,c", []string{"a", "b", "c"}},
		{"whitespace trimmed", " a , b , c ", []string{"a", "b", "c"}},
		{"empty parts skipped", "a,,b", []string{"a", "b"}},
		{"all empty", ",,,", nil},
		{"glob patterns", "*.go,src/**/*.ts", []string{"*.go", "src/**/*.ts"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitComma(tt.input))
		})
	}
}

func TestBuildOverrides(t *testing.T) {
	resetFlags()
	assert.Empty(t, buildOverrides())

	flagProvider = "anthropic"
	flagRules = "rules.json"
	flagNoRedact = true
	flagChecklist = true
	assert.Equal(t, map[string]any{
		"provider":         "anthropic",
		"rulesFile":        "rules.json",
		"redact":           false,
		"autoRunChecklist": true,
	}, buildOverrides())
	resetFlags()
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"config error", &providers.ConfigError{Msg: "OPENAI_API_KEY is not set"}, ExitUsageError},
		{"validation error", &config.ValidationError{Problems: []string{"maxFiles must be at least 1"}}, ExitUsageError},
		{"precondition", fmt.Errorf("review: %w", gitctx.Preconditionf("on base branch")), ExitUsageError},
		{"github auth", fmt.Errorf("posting: %w", github.ErrAuth), ExitAuthError},
		{"cancelled", orchestrator.ErrCancelled, ExitFindings},
		{"provider failure", &providers.CallError{Provider: "openai", StatusCode: 500, Message: "boom"}, ExitRuntimeError},
		{"other", errors.New("disk full"), ExitRuntimeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestVersionCmd(t *testing.T) {
	stdout, _, code := execute(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "prreview version ")
}

func TestModelsList(t *testing.T) {
	stdout, _, code := execute(t, "models", "list")
	assert.Equal(t, ExitSuccess, code)
	for provider, model := range providers.DefaultModels {
		assert.Contains(t, stdout, provider+":")
		assert.Contains(t, stdout, model+" (default)")
	}
}

func TestKnownModels_IncludeDefaults(t *testing.T) {
	for _, info := range knownModels {
		assert.NotEmpty(t, info.Models, info.Provider)
		assert.Contains(t, info.Models, providers.DefaultModels[info.Provider], info.Provider)
	}
	assert.Len(t, knownModels, len(providers.DefaultModels))
}

func TestModelsDoctor(t *testing.T) {
	isolate(t)
	testChdir(t, t.TempDir())

	useReviewer(t, &fakeReviewer{response: "ok"})
	stdout, _, code := execute(t, "models", "doctor")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "OK: openai")

	useReviewer(t, &fakeReviewer{err: &providers.ConfigError{Msg: "OPENAI_API_KEY is not set"}})
	_, stderr, code := execute(t, "models", "doctor")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, stderr, "OPENAI_API_KEY")
}

func TestConfigSetGetPath(t *testing.T) {
	isolate(t)
	testChdir(t, t.TempDir())

	stdout, _, code := execute(t, "config", "path")
	require.Equal(t, ExitSuccess, code)
	path := strings.TrimSpace(stdout)
	assert.Equal(t, "config.toml", filepath.Base(path))

	_, _, code = execute(t, "config", "set", "maxFiles", "25")
	require.Equal(t, ExitSuccess, code)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "maxFiles = 25")

	stdout, _, code = execute(t, "config", "get", "maxFiles")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "25\n", stdout)

	_, _, code = execute(t, "config", "set", "unknownKey", "x")
	assert.Equal(t, ExitUsageError, code)
	_, _, code = execute(t, "config", "set", "maxFiles", "0")
	assert.Equal(t, ExitUsageError, code)
	_, _, code = execute(t, "config", "set", "maxFiles")
	assert.Equal(t, ExitUsageError, code)
}

func TestConfigShow_MasksAPIKey(t *testing.T) {
	isolate(t)
	testChdir(t, t.TempDir())
	t.Setenv("PRREVIEW_API_KEY", "sk-abcdefghijklmnop")

	stdout, _, code := execute(t, "config", "show")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "apiKey = sk-a")
	assert.NotContains(t, stdout, "sk-abcdefghijklmnop")
	assert.Contains(t, stdout, "baseBranch = development")
}

func TestDisplayValue(t *testing.T) {
	assert.Equal(t, "", displayValue("apiKey", ""))
	assert.Equal(t, "*****", displayValue("apiKey", "short"))
	assert.Equal(t, "abcd****mnop", displayValue("apiKey", "abcdefghmnop"))
	assert.Equal(t, "openai", displayValue("provider", "openai"))
}

func TestReview_BlockingFindings(t *testing.T) {
	isolate(t)
	setupRepo(t)
	fake := &fakeReviewer{response: blockingResponse}
	useReviewer(t, fake)

	stdout, _, code := execute(t, "review", "--format", "json")
	assert.Equal(t, ExitFindings, code)
	assert.Equal(t, 1, fake.reviews)
	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "main.go")
	assert.Contains(t, fake.prompts[0], "extra.go")

	var report struct {
		Branch string `json:"branch"`
		Result struct {
			RiskLevel      string `json:"riskLevel"`
			BlockingIssues []struct {
				File string `json:"file"`
				Line int    `json:"line"`
			} `json:"blockingIssues"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "feature", report.Branch)
	assert.Equal(t, "HIGH", report.Result.RiskLevel)
	require.Len(t, report.Result.BlockingIssues, 1)
	assert.Equal(t, 3, report.Result.BlockingIssues[0].Line)

	// The stored review backs show.
	stdout, _, code = execute(t, "show", "--format", "markdown")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "nil dereference")
}

func TestReview_NonBlockingPolicy(t *testing.T) {
	isolate(t)
	setupRepo(t)
	t.Setenv("PRREVIEW_BLOCK_COMMIT_ON_ISSUES", "false")
	useReviewer(t, &fakeReviewer{response: blockingResponse})

	_, _, code := execute(t, "review")
	assert.Equal(t, ExitSuccess, code)
}

func TestReview_OnBaseBranch(t *testing.T) {
	isolate(t)
	_, run := setupRepo(t)
	run("stash", "-u")
	run("checkout", "development")
	fake := &fakeReviewer{response: blockingResponse}
	useReviewer(t, fake)

	_, stderr, code := execute(t, "review")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, stderr, "base branch")
	assert.Zero(t, fake.reviews)
}

func TestReview_SizeGate(t *testing.T) {
	isolate(t)
	setupRepo(t)
	t.Setenv("PRREVIEW_MAX_FILES", "1")
	fake := &fakeReviewer{response: blockingResponse}
	useReviewer(t, fake)

	_, stderr, code := execute(t, "review")
	assert.Equal(t, ExitFindings, code)
	assert.Contains(t, stderr, "Review cancelled.")
	assert.Zero(t, fake.reviews)

	_, _, code = execute(t, "review", "--yes", "--no-cache")
	assert.Equal(t, ExitFindings, code)
	assert.Equal(t, 1, fake.reviews)
}

func TestReview_MalformedResponse(t *testing.T) {
	isolate(t)
	setupRepo(t)
	useReviewer(t, &fakeReviewer{response: "Looks good to me!"})

	_, stderr, code := execute(t, "review")
	assert.Equal(t, ExitRuntimeError, code)
	assert.Contains(t, stderr, "Error: malformed review response")
	assert.Contains(t, stderr, "Provider response:\nLooks good to me!\n")
	assert.Contains(t, stderr, "Rerun with --verbose")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("  short\n", 10))
	assert.Equal(t, "abc...", excerpt("abcdef", 3))
	assert.Equal(t, "héé...", excerpt("hééllo", 3))
}

func TestReview_InvalidFormat(t *testing.T) {
	isolate(t)
	setupRepo(t)
	fake := &fakeReviewer{response: blockingResponse}
	useReviewer(t, fake)

	_, _, code := execute(t, "review", "--format", "yaml")
	assert.Equal(t, ExitUsageError, code)
	assert.Zero(t, fake.reviews)
}

func TestChecklist(t *testing.T) {
	isolate(t)
	setupRepo(t)

	stdout, stderr, code := execute(t, "checklist")
	assert.Equal(t, ExitFindings, code)
	assert.Contains(t, stdout, "Pre-PR Checklist")
	assert.Contains(t, stdout, "2/4 checks passed")
	assert.Contains(t, stdout, "Tests failed or no test command found")
	assert.Contains(t, stdout, "AI review not completed")
	assert.Contains(t, stderr, "Failed checks: tests, review")

	useReviewer(t, &fakeReviewer{response: blockingResponse})
	_, _, code = execute(t, "review")
	require.Equal(t, ExitFindings, code)

	stdout, stderr, code = execute(t, "checklist", "--yes")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "3/4 checks passed")
	assert.Contains(t, stderr, "Failed checks: tests\n")
	assert.Contains(t, stderr, "Proceeding despite failed checks.")
}

func TestChecklist_ReviewFromOtherBranch(t *testing.T) {
	isolate(t)
	_, run := setupRepo(t)

	useReviewer(t, &fakeReviewer{response: blockingResponse})
	_, _, code := execute(t, "review")
	require.Equal(t, ExitFindings, code)

	run("checkout", "-b", "feature-2")
	stdout, stderr, code := execute(t, "checklist")
	assert.Equal(t, ExitFindings, code)
	assert.Contains(t, stdout, "2/4 checks passed")
	assert.Contains(t, stdout, "AI review not completed")
	assert.Contains(t, stderr, "Failed checks: tests, review")
}

func TestDescribe(t *testing.T) {
	isolate(t)
	setupRepo(t)
	useReviewer(t, &fakeReviewer{response: "\n## Summary\n\nGuards the handler.\n"})

	stdout, _, code := execute(t, "describe")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "## Summary\n\nGuards the handler.\n", stdout)
}

func TestPrecommit(t *testing.T) {
	isolate(t)
	_, run := setupRepo(t)

	useReviewer(t, &fakeReviewer{response: blockingResponse})
	_, stderr, code := execute(t, "precommit")
	assert.Equal(t, ExitFindings, code)
	assert.Contains(t, stderr, "1 blocking issue(s)")

	useReviewer(t, &fakeReviewer{err: errors.New("connection refused")})
	_, stderr, code = execute(t, "precommit", "--no-cache")
	assert.Equal(t, ExitSuccess, code, "review failures must not block commits")
	assert.Contains(t, stderr, "allowing commit")

	run("reset", "-q")
	fake := &fakeReviewer{response: blockingResponse}
	useReviewer(t, fake)
	_, stderr, code = execute(t, "precommit")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stderr, "nothing staged")
	assert.Zero(t, fake.reviews)
}

func TestShow_NoStoredReview(t *testing.T) {
	isolate(t)
	setupRepo(t)

	_, stderr, code := execute(t, "show")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, stderr, "prreview review")
}

func TestPublish_RequiresPR(t *testing.T) {
	isolate(t)
	_, stderr, code := execute(t, "publish")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, stderr, "--pr")
}

func TestCacheShowAndClear(t *testing.T) {
	isolate(t)
	setupRepo(t)
	useReviewer(t, &fakeReviewer{response: blockingResponse})
	execute(t, "review")

	stdout, _, code := execute(t, "cache", "show")
	require.Equal(t, ExitSuccess, code)
	var stats struct {
		Enabled bool `json:"enabled"`
		Stores  map[string]struct {
			Entries int `json:"entries"`
		} `json:"stores"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
	assert.True(t, stats.Enabled)
	assert.Equal(t, 1, stats.Stores["responses"].Entries)
	assert.Equal(t, 1, stats.Stores["reviews"].Entries)

	stdout, _, code = execute(t, "cache", "clear")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "2 entries")
}
