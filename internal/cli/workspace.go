package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"

	"github.com/dshills/prreview/internal/config"
	"github.com/dshills/prreview/internal/gitctx"
	"github.com/dshills/prreview/internal/logging"
	"github.com/dshills/prreview/internal/orchestrator"
	"github.com/dshills/prreview/internal/providers"
	"github.com/dshills/prreview/internal/review"
	"github.com/dshills/prreview/internal/runner"
	"github.com/dshills/prreview/internal/sizegate"
	"github.com/dshills/prreview/internal/store"
)

// workspace is the repository and configuration a command operates on.
type workspace struct {
	repo *gitctx.Repo
	// root is empty outside a git repository.
	root string
	cfg  config.Config
}

// newReviewer builds the provider session for cfg. Tests replace it.
var newReviewer = func(cfg config.Config) orchestrator.Reviewer {
	return providers.NewSession(cfg.ProviderConfig())
}

// interactive reports whether prompts can be shown. Tests replace it.
var interactive = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stderr.Fd())
}

// openWorkspace locates the repository, loads and validates configuration
// and installs the logger.
func openWorkspace(ctx context.Context) (*workspace, error) {
	logging.Setup(flagLogLevel, flagVerbose)

	repo := gitctx.New(".")
	root, err := repo.Root(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("not inside a git repository")
		root = ""
	}

	cfg, err := config.Load(config.LoadOptions{ProjectDir: root, Overrides: buildOverrides()})
	if err != nil {
		return nil, err
	}
	if flagModel != "" {
		if cfg.Models == nil {
			cfg.Models = make(map[string]string)
		}
		cfg.Models[providers.Canonical(cfg.Provider)] = flagModel
	}
	if flagExclude != "" {
		cfg.Exclude = append(cfg.Exclude, splitComma(flagExclude)...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if flagLogLevel == "" {
		logging.Setup(cfg.Log.Level, flagVerbose)
	}
	if root != "" {
		repo = gitctx.New(root)
	}
	return &workspace{repo: repo, root: root, cfg: cfg}, nil
}

func (w *workspace) requireRepo() error {
	if w.root == "" {
		return gitctx.Preconditionf("not a git repository")
	}
	return nil
}

func (w *workspace) model() string {
	return w.cfg.ProviderConfig().Model
}

// options turns configuration into per-run orchestrator options.
func (w *workspace) options() (orchestrator.Options, error) {
	rules, err := review.LoadRules(w.cfg.RulesFile)
	if err != nil {
		return orchestrator.Options{}, err
	}
	base := w.cfg.BaseBranch
	if flagBase != "" {
		base = flagBase
	}
	return orchestrator.Options{
		Base:         base,
		MaxFiles:     w.cfg.MaxFiles,
		CustomPrompt: w.cfg.CustomPrompt,
		Rules:        rules,
		Exclude:      w.cfg.Exclude,
		Redact:       w.cfg.Redact,
		RedactPaths:  w.cfg.RedactPaths,
		Repair:       w.cfg.RepairJSON,
	}, nil
}

func (w *workspace) orchestrator() *orchestrator.Orchestrator {
	o := &orchestrator.Orchestrator{
		VCS:        w.repo,
		Reviewer:   withSpinner(newReviewer(w.cfg)),
		Root:       w.root,
		Confirm:    confirmLargeChange,
		CacheScope: w.model(),
	}
	if flagYes {
		o.Confirm = nil
	}
	if w.cfg.Cache.Enabled && !flagNoCache {
		dir, err := w.cacheDir("responses")
		if err == nil {
			var cache *store.Responses
			cache, err = store.OpenResponses(dir, w.cfg.Cache.TTL)
			if err == nil {
				o.Cache = cache
			}
		}
		if err != nil {
			log.Warn().Err(err).Msg("response cache unavailable")
		}
	}
	return o
}

// cacheDir returns a subdirectory of the configured cache directory.
func (w *workspace) cacheDir(name string) (string, error) {
	base := w.cfg.Cache.Dir
	if base == "" {
		d, err := store.DefaultDir()
		if err != nil {
			return "", err
		}
		base = d
	}
	return filepath.Join(base, name), nil
}

func (w *workspace) reviews() (*store.Store, error) {
	dir, err := w.cacheDir("reviews")
	if err != nil {
		return nil, err
	}
	return store.Open(dir)
}

// executor picks the command executor for the checklist.
func (w *workspace) executor() runner.Executor {
	if w.cfg.Runner.Grace {
		return runner.GraceExecutor{Window: w.cfg.Runner.GraceWindow}
	}
	return runner.ShellExecutor{Timeout: w.cfg.Runner.Timeout}
}

// confirmLargeChange asks before reviewing more files than configured.
// Without a terminal it declines.
func confirmLargeChange(ctx context.Context, files []gitctx.ChangedFile, maxFiles int) (bool, error) {
	warning := sizegate.Warning(len(files), maxFiles)
	if !interactive() {
		fmt.Fprintf(os.Stderr, "%s\nRerun with --yes to review anyway.\n", warning)
		return false, nil
	}
	return confirm(warning + " Continue?")
}

func confirm(message string) (bool, error) {
	var ok bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	if errors.Is(err, terminal.InterruptErr) {
		return false, nil
	}
	return ok, err
}

// spinnerReviewer shows progress on stderr while the provider works.
type spinnerReviewer struct {
	orchestrator.Reviewer
}

func withSpinner(r orchestrator.Reviewer) orchestrator.Reviewer {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return r
	}
	return spinnerReviewer{r}
}

func (s spinnerReviewer) Review(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	defer s.spin("Reviewing changes with " + s.Name())()
	return s.Reviewer.Review(ctx, systemPrompt, userPrompt)
}

func (s spinnerReviewer) Generate(ctx context.Context, prompt string) (string, error) {
	defer s.spin("Writing description with " + s.Name())()
	return s.Reviewer.Generate(ctx, prompt)
}

func (s spinnerReviewer) spin(msg string) func() {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	sp.Suffix = " " + msg + "..."
	sp.Start()
	return sp.Stop
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
