package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/prreview/internal/gitctx"
	"github.com/dshills/prreview/internal/output"
	"github.com/dshills/prreview/internal/precommit"
	"github.com/dshills/prreview/internal/review"
)

const defaultHookCommand = "prreview precommit"

var hookCommand string

var precommitCmd = &cobra.Command{
	Use:   "precommit",
	Short: "Review staged changes and decide whether the commit may proceed",
	Long: `Precommit reviews the staged changes with the pre-commit prompt. Exit status
is 1 when blocking issues are found and blockCommitOnIssues is set. Review
failures are reported but never block the commit.`,
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
		opts, err := ws.options()
		if err != nil {
			fail(cmd, err)
			return nil
		}

		orch := ws.orchestrator()
		var report *output.Report
		decision := precommit.Validate(ctx, precommit.ReviewerFunc(func(ctx context.Context) (review.Result, error) {
			out, err := orch.ReviewStaged(ctx, opts)
			if err != nil {
				return review.Result{}, err
			}
			report = output.FromOutcome(out, ws.model(), ws.root)
			report.Inline = ws.cfg.InlineAnnotations
			return out.Result, nil
		}), ws.cfg.BlockCommitOnIssues)

		switch {
		case decision.Err != nil:
			fmt.Fprintf(cmd.ErrOrStderr(), "prreview: review failed, allowing commit: %v\n", decision.Err)
			return nil
		case !decision.Reviewed:
			fmt.Fprintln(cmd.ErrOrStderr(), "prreview: nothing staged")
			return nil
		}

		if err := writeReport(cmd.OutOrStdout(), report); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error writing output: %v\n", err)
		}
		if !decision.CanCommit {
			fmt.Fprintf(cmd.ErrOrStderr(), "prreview: %d blocking issue(s) found\n", len(decision.Result.BlockingIssues))
			exitCode = ExitFindings
		}
		return nil
	},
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git pre-commit hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install prreview as a git pre-commit hook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := hookPath(cmd.Context())
		if err != nil {
			fail(cmd, err)
			return nil
		}
		if err := precommit.Install(path, hookCommand); err != nil {
			fail(cmd, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed prreview pre-commit hook at %s\n", path)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the prreview pre-commit hook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := hookPath(cmd.Context())
		if err != nil {
			fail(cmd, err)
			return nil
		}
		removed, err := precommit.Uninstall(path)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		if !removed {
			fmt.Fprintln(cmd.OutOrStdout(), "No prreview pre-commit hook found.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed prreview pre-commit hook from %s\n", path)
		return nil
	},
}

var hookStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the pre-commit hook is installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := hookPath(cmd.Context())
		if err != nil {
			fail(cmd, err)
			return nil
		}
		ok, err := precommit.Installed(path)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		if ok {
			fmt.Fprintf(cmd.OutOrStdout(), "installed (%s)\n", path)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "not installed")
		}
		return nil
	},
}

func hookPath(ctx context.Context) (string, error) {
	dir, err := gitctx.New(".").HooksDir(ctx)
	if err != nil {
		return "", err
	}
	return precommit.HookPath(dir), nil
}

func init() {
	addReviewFlags(precommitCmd)
	precommitCmd.Flags().StringVar(&flagFormat, "format", "text", "Output format (text, json, markdown, sarif)")

	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookCmd.AddCommand(hookStatusCmd)
	hookInstallCmd.Flags().StringVar(&hookCommand, "command", defaultHookCommand, "Command the hook runs")
}
