package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dshills/prreview/internal/orchestrator"
	"github.com/dshills/prreview/internal/output"
	"github.com/dshills/prreview/internal/review"
	"github.com/dshills/prreview/internal/sizegate"
	"github.com/dshills/prreview/internal/store"
)

// Shared review flags
var (
	flagBase      string
	flagProvider  string
	flagModel     string
	flagFormat    string
	flagOut       string
	flagRules     string
	flagExclude   string
	flagYes       bool
	flagNoRedact  bool
	flagNoCache   bool
	flagChecklist bool
)

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagBase, "base", "", "Base branch to diff against (default: baseBranch from config)")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (openai, anthropic, gemini, ollama)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name for the selected provider")
	cmd.Flags().StringVar(&flagRules, "rules", "", "Rules file path")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Additional exclude globs (comma-separated)")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the response cache")
}

func buildOverrides() map[string]any {
	m := make(map[string]any)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagRules != "" {
		m["rulesFile"] = flagRules
	}
	if flagNoRedact {
		m["redact"] = false
	}
	if flagChecklist {
		m["autoRunChecklist"] = true
	}
	return m
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review the current branch against the base branch",
	Long: `Review collects the changes between the base branch and the working tree,
sends them to the configured provider and prints the findings.

Exit status is 1 when blocking issues are found and blockCommitOnIssues is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		if err := ws.requireRepo(); err != nil {
			fail(cmd, err)
			return nil
		}
		if _, err := output.GetWriter(flagFormat); err != nil {
			fail(cmd, err)
			exitCode = ExitUsageError
			return nil
		}
		if flagNoRedact {
			fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: secret redaction is disabled")
		}
		runReview(cmd, ws)
		return nil
	},
}

func runReview(cmd *cobra.Command, ws *workspace) {
	ctx := cmd.Context()
	opts, err := ws.options()
	if err != nil {
		fail(cmd, err)
		return
	}

	out, err := ws.orchestrator().Run(ctx, opts)
	switch {
	case errors.Is(err, review.ErrNoChanges):
		fmt.Fprintln(cmd.OutOrStdout(), "No changes to review.")
		return
	case errors.Is(err, orchestrator.ErrCancelled):
		fmt.Fprintln(cmd.ErrOrStderr(), "Review cancelled.")
		exitCode = ExitFindings
		return
	case err != nil:
		fail(cmd, err)
		return
	}

	saveRecord(ctx, ws, out)

	report := output.FromOutcome(out, ws.model(), ws.root)
	report.Inline = ws.cfg.InlineAnnotations
	if err := writeReport(cmd.OutOrStdout(), report); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	if sizegate.ShouldBlock(len(out.Result.BlockingIssues), ws.cfg.BlockCommitOnIssues) {
		exitCode = ExitFindings
	}

	if ws.cfg.AutoRunChecklist {
		w := cmd.OutOrStdout()
		if flagFormat != "" && flagFormat != "text" {
			w = cmd.ErrOrStderr()
		}
		fmt.Fprintln(w)
		if failed := runChecklist(ctx, ws, w, nil); len(failed) > 0 {
			exitCode = ExitFindings
		}
	}
}

// saveRecord keeps the outcome as the workspace's last review. Failures are
// logged; the review itself already succeeded.
func saveRecord(ctx context.Context, ws *workspace, out *orchestrator.Outcome) {
	st, err := ws.reviews()
	if err != nil {
		log.Warn().Err(err).Msg("review store unavailable")
		return
	}
	head, err := ws.repo.HeadSHA(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("resolving HEAD")
	}
	rec := store.Record{
		RunID:     out.RunID,
		Workspace: ws.root,
		Branch:    out.Branch,
		Base:      out.Base,
		Head:      head,
		Provider:  out.Provider,
		Model:     ws.model(),
		CreatedAt: time.Now().UTC(),
		Result:    out.Result,
		Files:     out.Files,
	}
	if err := st.Save(rec); err != nil {
		log.Warn().Err(err).Msg("saving review")
	}
}

// writeReport writes to --out when set, otherwise to w.
func writeReport(w io.Writer, report *output.Report) error {
	if flagOut != "" {
		return output.WriteReport(report, flagFormat, flagOut)
	}
	writer, err := output.GetWriter(flagFormat)
	if err != nil {
		return err
	}
	return writer.Write(w, report)
}

var flagRaw bool

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Generate a pull request description for the current branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		if err := ws.requireRepo(); err != nil {
			fail(cmd, err)
			return nil
		}
		opts, err := ws.options()
		if err != nil {
			fail(cmd, err)
			return nil
		}

		text, err := ws.orchestrator().Describe(ctx, opts)
		if errors.Is(err, review.ErrNoChanges) {
			fmt.Fprintln(cmd.OutOrStdout(), "No changes to describe.")
			return nil
		}
		if err != nil {
			fail(cmd, err)
			return nil
		}

		if flagOut != "" {
			if err := os.WriteFile(flagOut, []byte(text+"\n"), 0o644); err != nil {
				fail(cmd, fmt.Errorf("writing description: %w", err))
			}
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(cmd.OutOrStdout(), text))
		return nil
	},
}

// renderMarkdown styles md for a terminal; other destinations get it as is.
func renderMarkdown(w io.Writer, md string) string {
	f, ok := w.(*os.File)
	if flagRaw || !ok || !isatty.IsTerminal(f.Fd()) {
		return md + "\n"
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md + "\n"
	}
	styled, err := r.Render(md)
	if err != nil {
		log.Debug().Err(err).Msg("rendering markdown")
		return md + "\n"
	}
	return styled
}

func init() {
	addReviewFlags(reviewCmd)
	reviewCmd.Flags().StringVar(&flagFormat, "format", "text", "Output format (text, json, markdown, sarif)")
	reviewCmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	reviewCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Review oversized change sets without asking")
	reviewCmd.Flags().BoolVar(&flagChecklist, "checklist", false, "Run the pre-PR checklist after the review")

	addReviewFlags(describeCmd)
	describeCmd.Flags().StringVar(&flagOut, "out", "", "Write the description to a file")
	describeCmd.Flags().BoolVar(&flagRaw, "raw", false, "Print markdown without terminal styling")
}
