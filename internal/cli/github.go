package cli

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dshills/prreview/internal/github"
	"github.com/dshills/prreview/internal/output"
	"github.com/dshills/prreview/internal/store"
)

var errNoStoredReview = errors.New(`no review stored for this workspace; run "prreview review" first`)

var (
	flagPR             int
	flagGHOwner        string
	flagGHRepo         string
	flagGHRemote       string
	flagGHDryRun       bool
	flagRequestChanges bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the last review stored for this workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, rec, ok := lastReview(cmd)
		if !ok {
			return nil
		}
		report := output.FromRecord(rec)
		report.Root = ws.root
		report.Inline = ws.cfg.InlineAnnotations
		if err := writeReport(cmd.OutOrStdout(), report); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error writing output: %v\n", err)
			exitCode = ExitRuntimeError
		}
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Post the last stored review to a GitHub pull request",
	Long: `Publish posts the last stored review as a pull request review. Issues on
lines inside the PR diff become inline comments; the rest are listed in the
review body. Requires GITHUB_TOKEN.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagPR <= 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error: --pr must be a positive pull request number")
			exitCode = ExitUsageError
			return nil
		}
		ws, rec, ok := lastReview(cmd)
		if !ok {
			return nil
		}
		ctx := cmd.Context()

		if head, err := ws.repo.HeadSHA(ctx); err == nil && rec.Head != "" && head != rec.Head {
			log.Warn().Str("stored", rec.Head).Str("head", head).Msg("stored review was made at a different commit")
		}

		owner, repo := flagGHOwner, flagGHRepo
		if owner == "" || repo == "" {
			remote, err := ws.repo.RemoteURL(ctx, flagGHRemote)
			if err != nil {
				fail(cmd, fmt.Errorf("%w (use --owner and --repo)", err))
				return nil
			}
			detectedOwner, detectedRepo, err := github.ParseRemoteURL(remote)
			if err != nil {
				fail(cmd, fmt.Errorf("%w (use --owner and --repo)", err))
				return nil
			}
			if owner == "" {
				owner = detectedOwner
			}
			if repo == "" {
				repo = detectedRepo
			}
		}

		client, err := github.NewClient(ctx, "", "")
		if err != nil {
			fail(cmd, err)
			return nil
		}
		commentable, err := client.PRFiles(ctx, owner, repo, flagPR)
		if err != nil {
			fail(cmd, err)
			return nil
		}

		rev := github.BuildReview(rec.Result, commentable, flagRequestChanges)
		if flagGHDryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nDry run: %d inline comment(s), event %s, not posted.\n",
				rev.Body, len(rev.Comments), rev.Event)
			return nil
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Posting review to %s/%s#%d (%d inline comments)...\n",
			owner, repo, flagPR, len(rev.Comments))
		if err := client.PostReview(ctx, owner, repo, flagPR, rev); err != nil {
			fail(cmd, err)
			return nil
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Review posted to PR #%d.\n", flagPR)
		return nil
	},
}

// lastReview loads the stored review for the current workspace. It reports
// problems itself and returns ok=false when the command should stop.
func lastReview(cmd *cobra.Command) (*workspace, store.Record, bool) {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		fail(cmd, err)
		return nil, store.Record{}, false
	}
	if err := ws.requireRepo(); err != nil {
		fail(cmd, err)
		return nil, store.Record{}, false
	}
	st, err := ws.reviews()
	if err != nil {
		fail(cmd, err)
		return nil, store.Record{}, false
	}
	rec, ok, err := st.Load(ws.root)
	if err != nil {
		fail(cmd, err)
		return nil, store.Record{}, false
	}
	if !ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", errNoStoredReview)
		exitCode = ExitUsageError
		return nil, store.Record{}, false
	}
	return ws, rec, true
}

func init() {
	showCmd.Flags().StringVar(&flagFormat, "format", "text", "Output format (text, json, markdown, sarif)")
	showCmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")

	publishCmd.Flags().IntVar(&flagPR, "pr", 0, "Pull request number")
	publishCmd.Flags().StringVar(&flagGHOwner, "owner", "", "GitHub repository owner (auto-detected if omitted)")
	publishCmd.Flags().StringVar(&flagGHRepo, "repo", "", "GitHub repository name (auto-detected if omitted)")
	publishCmd.Flags().StringVar(&flagGHRemote, "remote", "origin", "Git remote used to detect owner and repo")
	publishCmd.Flags().BoolVar(&flagGHDryRun, "dry-run", false, "Print the review instead of posting it")
	publishCmd.Flags().BoolVar(&flagRequestChanges, "request-changes", false, "Request changes when blocking issues exist")
}
