// Package checklist runs the pre-PR gate: lint, build, tests and a check that
// a review exists for the workspace. Steps run one after another and every
// step runs even when an earlier one failed.
package checklist

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dshills/prreview/internal/runner"
)

// Status is the state of one checklist item.
type Status string

const (
	Pending Status = "pending"
	Running Status = "running"
	Passed  Status = "passed"
	Failed  Status = "failed"
)

// Terminal reports whether s is Passed or Failed.
func (s Status) Terminal() bool { return s == Passed || s == Failed }

// Item is one step of a run. Items are created fresh for every run.
type Item struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
	// Command is the candidate that satisfied a command step.
	Command string `json:"command,omitempty"`
	// Skipped is set when a best-effort step found nothing to run.
	Skipped bool `json:"skipped,omitempty"`
}

// Step IDs in execution order.
const (
	StepLint   = "lint"
	StepBuild  = "build"
	StepTests  = "tests"
	StepReview = "review"
)

var (
	errBuild    = errors.New("Build failed or no build command found")
	errTests    = errors.New("Tests failed or no test command found")
	errNoReview = errors.New(`AI review not completed. Run "prreview review" first.`)
)

// Candidates are the commands tried for each command step.
type Candidates struct {
	Lint  []string `koanf:"lint"`
	Build []string `koanf:"build"`
	Tests []string `koanf:"tests"`
}

// DefaultCandidates mirrors common npm/yarn project layouts.
func DefaultCandidates() Candidates {
	return Candidates{
		Lint:  []string{"npm run lint", "yarn lint", "eslint ."},
		Build: []string{"npm run build", "yarn build", "tsc"},
		Tests: []string{"npm test", "yarn test", "npm run test:unit"},
	}
}

// Engine runs one checklist over a workspace.
type Engine struct {
	Exec       runner.Executor
	Dir        string
	Candidates Candidates
	// ReviewDone reports whether review output exists for the workspace.
	ReviewDone func(ctx context.Context) (bool, error)
	// Observer, when set, is called after every status change.
	Observer func(Item)
}

type step struct {
	id, label string
	check     func(ctx context.Context, it *Item) error
}

func (e *Engine) steps() []step {
	return []step{
		{StepLint, "Lint check", func(ctx context.Context, it *Item) error {
			return e.command(ctx, it, e.Candidates.Lint, runner.BestEffort, nil)
		}},
		{StepBuild, "Build verification", func(ctx context.Context, it *Item) error {
			return e.command(ctx, it, e.Candidates.Build, runner.Required, errBuild)
		}},
		{StepTests, "Test suite", func(ctx context.Context, it *Item) error {
			return e.command(ctx, it, e.Candidates.Tests, runner.Required, errTests)
		}},
		{StepReview, "AI review completed", func(ctx context.Context, _ *Item) error {
			return e.reviewCompleted(ctx)
		}},
	}
}

func (e *Engine) command(ctx context.Context, it *Item, cands []string, mode runner.Mode, failure error) error {
	res, err := runner.Run(ctx, e.Exec, cands, e.Dir, mode)
	it.Command = res.Succeeded
	it.Skipped = res.Skipped
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Debug().Err(err).Str("step", it.ID).Msg("checklist step failed")
		return failure
	}
	return nil
}

func (e *Engine) reviewCompleted(ctx context.Context) error {
	if e.ReviewDone == nil {
		return errNoReview
	}
	ok, err := e.ReviewDone(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errNoReview
	}
	return nil
}

// Run executes every step in order and returns the items. It never stops
// early and never retries a step.
func (e *Engine) Run(ctx context.Context) []Item {
	steps := e.steps()
	items := make([]Item, len(steps))
	for i, s := range steps {
		items[i] = Item{ID: s.id, Label: s.label, Status: Pending}
		e.notify(items[i])
	}

	for i, s := range steps {
		it := &items[i]
		it.Status = Running
		e.notify(*it)

		if err := s.check(ctx, it); err != nil {
			it.Status = Failed
			it.Error = err.Error()
		} else {
			it.Status = Passed
		}
		e.notify(*it)
	}
	return items
}

func (e *Engine) notify(it Item) {
	if e.Observer != nil {
		e.Observer(it)
	}
}

// Summary counts terminal outcomes of a run.
type Summary struct {
	Total  int
	Passed int
	Failed int
}

// AllPassed reports whether every item passed.
func (s Summary) AllPassed() bool { return s.Failed == 0 && s.Passed == s.Total }

// Summarize counts passed and failed items.
func Summarize(items []Item) Summary {
	s := Summary{Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case Passed:
			s.Passed++
		case Failed:
			s.Failed++
		}
	}
	return s
}

// FailedItems returns the failed items in run order.
func FailedItems(items []Item) []Item {
	var out []Item
	for _, it := range items {
		if it.Status == Failed {
			out = append(out, it)
		}
	}
	return out
}
