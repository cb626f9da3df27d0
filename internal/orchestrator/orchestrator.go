// Package orchestrator runs a review end to end: it checks repository
// preconditions, collects the diff, applies the size gate, prompts the
// provider and turns its answer into a validated result and annotations.
//
// The orchestrator never branches on provider identity and keeps no state
// between calls. Callers serialize invocations.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dshills/prreview/internal/annotate"
	"github.com/dshills/prreview/internal/gitctx"
	"github.com/dshills/prreview/internal/redact"
	"github.com/dshills/prreview/internal/review"
	"github.com/dshills/prreview/internal/sizegate"
	"github.com/dshills/prreview/internal/store"
)

// ErrCancelled is returned when the user declines to review an oversized
// change set.
var ErrCancelled = errors.New("review cancelled")

// VCS is the version-control surface the orchestrator needs. *gitctx.Repo
// implements it.
type VCS interface {
	CurrentBranch(ctx context.Context) (string, error)
	ChangedFiles(ctx context.Context, base string) ([]gitctx.ChangedFile, error)
	Diff(ctx context.Context, base string) (string, error)
	StagedDiff(ctx context.Context) (string, error)
	BranchExists(ctx context.Context, name string) (bool, error)
}

// baseResolver is implemented by VCS values that can map a base branch name
// to the ref that should be diffed (e.g. origin/<base>).
type baseResolver interface {
	ResolveBase(ctx context.Context, name string) (string, error)
}

// Reviewer sends prompts to a provider. *providers.Session implements it.
type Reviewer interface {
	Name() string
	Review(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// ResponseCache stores raw provider responses by request hash.
type ResponseCache interface {
	Get(key string) (string, bool)
	Put(key, response string) error
}

// ConfirmFunc is asked whether to continue when the size gate needs
// confirmation.
type ConfirmFunc func(ctx context.Context, files []gitctx.ChangedFile, maxFiles int) (bool, error)

// Options are the per-run settings, read from configuration by the caller.
type Options struct {
	Base         string
	MaxFiles     int
	CustomPrompt string
	Rules        *review.Rules
	Exclude      []string
	Redact       bool
	RedactPaths  []string
	Repair       bool
}

// Orchestrator wires the collaborators of a review.
type Orchestrator struct {
	VCS      VCS
	Reviewer Reviewer
	// Root is the workspace root used to make annotation paths absolute.
	Root string
	// Confirm may be nil, in which case oversized change sets proceed.
	Confirm ConfirmFunc
	// Cache may be nil.
	Cache ResponseCache
	// CacheScope distinguishes cache entries across models.
	CacheScope string
}

// Outcome is everything a presentation layer may read about one run.
type Outcome struct {
	RunID       string                           `json:"runId"`
	Branch      string                           `json:"branch,omitempty"`
	Base        string                           `json:"base,omitempty"`
	Provider    string                           `json:"provider"`
	Result      review.Result                    `json:"result"`
	Annotations map[string][]annotate.Annotation `json:"annotations"`
	Files       []gitctx.ChangedFile             `json:"files"`
	Stats       sizegate.Counts                  `json:"stats"`
	Redactions  redact.Report                    `json:"redactions,omitempty"`
	Cached      bool                             `json:"cached,omitempty"`
	Duration    time.Duration                    `json:"duration"`
}

// Run reviews the working tree against opts.Base.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Outcome, error) {
	start := time.Now()

	branch, base, err := o.preconditions(ctx, opts.Base)
	if err != nil {
		return nil, err
	}

	files, err := o.VCS.ChangedFiles(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("listing changed files: %w", err)
	}
	files = gitctx.ExcludeFiles(files, opts.Exclude)
	if len(files) == 0 {
		return nil, review.ErrNoChanges
	}

	if sizegate.Check(len(files), opts.MaxFiles) == sizegate.NeedsConfirmation {
		log.Warn().Int("files", len(files)).Int("max", opts.MaxFiles).Msg("change set exceeds size limit")
		if o.Confirm != nil {
			ok, err := o.Confirm(ctx, files, opts.MaxFiles)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrCancelled
			}
		}
	}

	diff, err := o.VCS.Diff(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("getting diff: %w", err)
	}
	diff = gitctx.ExcludeDiff(diff, opts.Exclude)
	diff, redactions := o.scrub(diff, opts)

	system := review.SystemPrompt(opts.CustomPrompt)
	user := review.BuildUserPrompt(diff, gitctx.Paths(files), opts.Rules)

	result, cached, err := o.review(ctx, system, user, opts.Repair)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		RunID:       uuid.NewString(),
		Branch:      branch,
		Base:        base,
		Provider:    o.Reviewer.Name(),
		Result:      result,
		Annotations: annotate.Map(result, o.Root),
		Files:       files,
		Stats:       sizegate.Stats(files),
		Redactions:  redactions,
		Cached:      cached,
		Duration:    time.Since(start),
	}
	log.Info().
		Str("run", out.RunID).
		Str("risk", string(result.RiskLevel)).
		Int("blocking", len(result.BlockingIssues)).
		Int("suggestions", len(result.Suggestions)).
		Int("notes", len(result.Notes)).
		Dur("elapsed", out.Duration).
		Msg("review complete")
	return out, nil
}

// ReviewStaged reviews the index against HEAD with the pre-commit prompt.
// Branch preconditions do not apply. An empty index yields
// review.ErrNoChanges.
func (o *Orchestrator) ReviewStaged(ctx context.Context, opts Options) (*Outcome, error) {
	start := time.Now()

	diff, err := o.VCS.StagedDiff(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting staged diff: %w", err)
	}
	diff = gitctx.ExcludeDiff(diff, opts.Exclude)
	if strings.TrimSpace(diff) == "" {
		return nil, review.ErrNoChanges
	}
	files, err := gitctx.ParseFiles(diff)
	if err != nil {
		return nil, err
	}
	diff, redactions := o.scrub(diff, opts)

	result, cached, err := o.review(ctx, review.SystemPrompt(opts.CustomPrompt), review.BuildStagedPrompt(diff), opts.Repair)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		RunID:       uuid.NewString(),
		Provider:    o.Reviewer.Name(),
		Result:      result,
		Annotations: annotate.Map(result, o.Root),
		Files:       files,
		Stats:       sizegate.Stats(files),
		Redactions:  redactions,
		Cached:      cached,
		Duration:    time.Since(start),
	}, nil
}

// Describe generates a markdown PR description for the changes against base.
func (o *Orchestrator) Describe(ctx context.Context, opts Options) (string, error) {
	_, base, err := o.preconditions(ctx, opts.Base)
	if err != nil {
		return "", err
	}
	files, err := o.VCS.ChangedFiles(ctx, base)
	if err != nil {
		return "", fmt.Errorf("listing changed files: %w", err)
	}
	files = gitctx.ExcludeFiles(files, opts.Exclude)
	if len(files) == 0 {
		return "", review.ErrNoChanges
	}
	diff, err := o.VCS.Diff(ctx, base)
	if err != nil {
		return "", fmt.Errorf("getting diff: %w", err)
	}
	diff, _ = o.scrub(gitctx.ExcludeDiff(diff, opts.Exclude), opts)

	text, err := o.Reviewer.Generate(ctx, review.BuildDescribePrompt(diff, gitctx.Paths(files)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// preconditions checks the branch state and returns the current branch and
// the ref to diff against. All problems are reported together.
func (o *Orchestrator) preconditions(ctx context.Context, base string) (string, string, error) {
	branch, err := o.VCS.CurrentBranch(ctx)
	if err != nil {
		return "", "", err
	}

	var problems []string
	if branch == "" {
		problems = append(problems, "HEAD is detached; check out a feature branch")
	}
	if base == "" {
		return "", "", gitctx.Preconditionf("no base branch configured")
	}
	if branch == base {
		problems = append(problems, fmt.Sprintf("you are on the base branch (%s); switch to a feature branch", base))
	}

	ok, err := o.VCS.BranchExists(ctx, base)
	if err != nil {
		return "", "", err
	}
	if !ok {
		problems = append(problems, fmt.Sprintf("base branch %q does not exist", base))
	}
	if len(problems) > 0 {
		return "", "", &gitctx.PreconditionError{Problems: problems}
	}

	ref := base
	if r, ok := o.VCS.(baseResolver); ok {
		resolved, err := r.ResolveBase(ctx, base)
		if err != nil {
			return "", "", err
		}
		if resolved != "" {
			ref = resolved
		}
	}
	return branch, ref, nil
}

func (o *Orchestrator) scrub(diff string, opts Options) (string, redact.Report) {
	if !opts.Redact {
		return diff, nil
	}
	out, rep := redact.Diff(diff, opts.RedactPaths)
	if n := rep.Total(); n > 0 {
		log.Warn().Int("count", n).Strs("kinds", rep.Kinds()).Msg("redacted secrets from diff")
	}
	return out, rep
}

// review calls the provider, or the cache, and parses the answer. Only
// responses that parse are cached.
func (o *Orchestrator) review(ctx context.Context, system, user string, repair bool) (review.Result, bool, error) {
	key := store.HashKey(o.Reviewer.Name(), o.CacheScope, system, user)
	if o.Cache != nil {
		if raw, ok := o.Cache.Get(key); ok {
			if result, err := review.ParseWithOptions(raw, review.ParseOptions{Repair: repair}); err == nil {
				log.Debug().Str("key", key[:12]).Msg("using cached response")
				return result, true, nil
			}
		}
	}

	log.Debug().
		Str("provider", o.Reviewer.Name()).
		Int("system_len", len(system)).
		Int("user_len", len(user)).
		Msg("requesting review")
	raw, err := o.Reviewer.Review(ctx, system, user)
	if err != nil {
		return review.Result{}, false, err
	}
	result, err := review.ParseWithOptions(raw, review.ParseOptions{Repair: repair})
	if err != nil {
		return review.Result{}, false, err
	}
	if o.Cache != nil {
		if err := o.Cache.Put(key, raw); err != nil {
			log.Warn().Err(err).Msg("caching response")
		}
	}
	return result, false, nil
}
