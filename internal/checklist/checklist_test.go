package checklist

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/prreview/internal/runner"
)

type fakeExec struct {
	ok    map[string]bool
	calls []string
}

func (f *fakeExec) Exec(_ context.Context, command, _ string) error {
	f.calls = append(f.calls, command)
	if f.ok[command] {
		return nil
	}
	return errors.New("exit status 1")
}

func reviewDone(done bool) func(context.Context) (bool, error) {
	return func(context.Context) (bool, error) { return done, nil }
}

func TestEngine_Scenario(t *testing.T) {
	// No linter, build succeeds on its second candidate, every test command fails.
	ex := &fakeExec{ok: map[string]bool{"yarn build": true}}
	e := &Engine{
		Exec:       ex,
		Dir:        t.TempDir(),
		Candidates: DefaultCandidates(),
		ReviewDone: reviewDone(true),
	}

	items := e.Run(context.Background())

	want := []Item{
		{ID: "lint", Label: "Lint check", Status: Passed, Skipped: true},
		{ID: "build", Label: "Build verification", Status: Passed, Command: "yarn build"},
		{ID: "tests", Label: "Test suite", Status: Failed, Error: "Tests failed or no test command found"},
		{ID: "review", Label: "AI review completed", Status: Passed},
	}
	if d := cmp.Diff(want, items); d != "" {
		t.Errorf("items mismatch (-want +got):\n%s", d)
	}

	wantCalls := []string{
		"npm run lint", "yarn lint", "eslint .",
		"npm run build", "yarn build",
		"npm test", "yarn test", "npm run test:unit",
	}
	assert.Equal(t, wantCalls, ex.calls, "steps must run sequentially without retries")

	s := Summarize(items)
	assert.Equal(t, Summary{Total: 4, Passed: 3, Failed: 1}, s)
	assert.False(t, s.AllPassed())
	require.Len(t, FailedItems(items), 1)
	assert.Equal(t, "tests", FailedItems(items)[0].ID)
}

func TestEngine_ContinuesAfterFailures(t *testing.T) {
	e := &Engine{
		Exec:       &fakeExec{},
		Candidates: Candidates{Build: nil, Tests: nil},
	}
	items := e.Run(context.Background())
	require.Len(t, items, 4)

	statuses := []Status{}
	for _, it := range items {
		statuses = append(statuses, it.Status)
	}
	assert.Equal(t, []Status{Passed, Failed, Failed, Failed}, statuses)
	assert.Equal(t, "Build failed or no build command found", items[1].Error)
	assert.Contains(t, items[3].Error, "AI review not completed")
}

func TestEngine_ReviewPredicateError(t *testing.T) {
	e := &Engine{
		Exec: &fakeExec{ok: map[string]bool{"make": true}},
		Candidates: Candidates{
			Build: []string{"make"},
			Tests: []string{"make"},
		},
		ReviewDone: func(context.Context) (bool, error) { return false, errors.New("store unreadable") },
	}
	items := e.Run(context.Background())
	assert.Equal(t, Failed, items[3].Status)
	assert.Equal(t, "store unreadable", items[3].Error)
	assert.Equal(t, Summary{Total: 4, Passed: 3, Failed: 1}, Summarize(items))
}

func TestEngine_ObserverSeesStateMachine(t *testing.T) {
	var seen []Item
	e := &Engine{
		Exec:       &fakeExec{ok: map[string]bool{"b": true, "t": true}},
		Candidates: Candidates{Build: []string{"b"}, Tests: []string{"t"}},
		ReviewDone: reviewDone(false),
		Observer:   func(it Item) { seen = append(seen, it) },
	}
	e.Run(context.Background())

	byID := map[string][]Status{}
	for _, it := range seen {
		byID[it.ID] = append(byID[it.ID], it.Status)
	}
	assert.Equal(t, []Status{Pending, Running, Passed}, byID["lint"])
	assert.Equal(t, []Status{Pending, Running, Passed}, byID["build"])
	assert.Equal(t, []Status{Pending, Running, Passed}, byID["tests"])
	assert.Equal(t, []Status{Pending, Running, Failed}, byID["review"])
}

func TestEngine_FreshItemsPerRun(t *testing.T) {
	e := &Engine{Exec: &fakeExec{}, ReviewDone: reviewDone(true)}
	first := e.Run(context.Background())
	second := e.Run(context.Background())
	if d := cmp.Diff(first, second, cmpopts.EquateEmpty()); d != "" {
		t.Errorf("runs should be independent:\n%s", d)
	}
	first[0].Status = Pending
	assert.Equal(t, Passed, second[0].Status)
}

func TestEngine_WithRealRunnerModes(t *testing.T) {
	// lint uses BestEffort, so a cancelled context still never fails it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := &Engine{Exec: runner.ExecutorFunc(func(context.Context, string, string) error { return nil }),
		Candidates: DefaultCandidates(), ReviewDone: reviewDone(true)}
	items := e.Run(ctx)
	assert.Equal(t, Passed, items[0].Status)
	assert.Equal(t, Failed, items[1].Status)
	assert.Equal(t, context.Canceled.Error(), items[1].Error)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, Pending.Terminal())
	assert.False(t, Running.Terminal())
	assert.True(t, Passed.Terminal())
	assert.True(t, Failed.Terminal())
}
