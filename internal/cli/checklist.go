package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dshills/prreview/internal/checklist"
	"github.com/dshills/prreview/internal/output"
)

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Run the pre-PR checklist (lint, build, tests, review)",
	Long: `Checklist runs lint, build and test commands in the repository and checks
that a review exists for the workspace. Every step runs even when an earlier
one fails. When steps fail you are asked whether to proceed anyway.`,
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

		var progress func(checklist.Item)
		if f, ok := cmd.ErrOrStderr().(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			progress = func(it checklist.Item) {
				if it.Status == checklist.Running {
					fmt.Fprintf(f, "  %s\n", output.ChecklistLine(it))
				}
			}
		}
		failed := runChecklist(ctx, ws, cmd.OutOrStdout(), progress)
		if len(failed) == 0 {
			return nil
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Failed checks: %s\n", failedIDs(failed))
		if flagYes {
			fmt.Fprintln(cmd.ErrOrStderr(), "Proceeding despite failed checks.")
			return nil
		}
		if interactive() {
			ok, err := confirm(fmt.Sprintf("%d check(s) failed. Proceed anyway?", len(failed)))
			if err == nil && ok {
				return nil
			}
		}
		exitCode = ExitFindings
		return nil
	},
}

// runChecklist runs the checklist for ws, prints the items to w and returns
// the items that failed.
func runChecklist(ctx context.Context, ws *workspace, w io.Writer, progress func(checklist.Item)) []checklist.Item {
	engine := &checklist.Engine{
		Exec:       ws.executor(),
		Dir:        ws.root,
		Candidates: ws.cfg.Checklist,
		ReviewDone: func(ctx context.Context) (bool, error) {
			return reviewedOnBranch(ctx, ws)
		},
		Observer: progress,
	}
	items := engine.Run(ctx)
	if err := output.WriteChecklist(w, items); err != nil {
		log.Warn().Err(err).Msg("writing checklist")
	}
	return checklist.FailedItems(items)
}

// reviewedOnBranch reports whether the stored review was made on the branch
// that is checked out now. A review from another branch does not count.
func reviewedOnBranch(ctx context.Context, ws *workspace) (bool, error) {
	st, err := ws.reviews()
	if err != nil {
		return false, err
	}
	rec, ok, err := st.Load(ws.root)
	if err != nil || !ok {
		return false, err
	}
	branch, err := ws.repo.CurrentBranch(ctx)
	if err != nil {
		return false, err
	}
	if rec.Branch != branch {
		log.Debug().Str("reviewed", rec.Branch).Str("current", branch).Msg("stored review is for another branch")
		return false, nil
	}
	return true, nil
}

func failedIDs(items []checklist.Item) string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return strings.Join(ids, ", ")
}

func init() {
	checklistCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Proceed without asking when checks fail")
}
