package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dshills/prreview/internal/config"
	"github.com/dshills/prreview/internal/github"
	"github.com/dshills/prreview/internal/gitctx"
	"github.com/dshills/prreview/internal/orchestrator"
	"github.com/dshills/prreview/internal/output"
	"github.com/dshills/prreview/internal/providers"
	"github.com/dshills/prreview/internal/review"
)

// version is overridden at build time with -ldflags "-X ...cli.version=".
var version = ""

// Exit codes
const (
	ExitSuccess      = 0
	ExitFindings     = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var (
	flagVerbose  bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:          "prreview",
	Short:        "AI-assisted pull request review",
	Long:         "prreview reviews the changes on a feature branch with an LLM provider, runs a pre-PR checklist and guards commits through a git hook.",
	SilenceUsage: true,
}

// Run executes the root command and returns an exit code. Cancelling ctx
// aborts in-flight provider calls and checklist commands.
func Run(ctx context.Context) int {
	return runArgs(ctx, os.Args[1:])
}

func runArgs(ctx context.Context, args []string) int {
	exitCode = ExitSuccess
	output.Version = Version()
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}
	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// Version reports the build version.
func Version() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print prreview version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "prreview version %s\n", Version())
	},
}

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	var (
		pe *gitctx.PreconditionError
		ve *config.ValidationError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case providers.IsAuthError(err), errors.Is(err, github.ErrAuth):
		return ExitAuthError
	case providers.IsConfigError(err), errors.As(err, &ve), errors.As(err, &pe):
		return ExitUsageError
	case errors.Is(err, orchestrator.ErrCancelled):
		return ExitFindings
	default:
		return ExitRuntimeError
	}
}

// fail prints err and records its exit code. Command handlers return nil
// afterwards so cobra does not print usage.
func fail(cmd *cobra.Command, err error) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "Error: %v\n", err)
	var mr *review.MalformedResponseError
	if errors.As(err, &mr) {
		log.Debug().Str("raw", mr.Raw).Msg("unparsable provider response")
		fmt.Fprintf(w, "Provider response:\n%s\n", excerpt(mr.Raw, rawExcerptLen))
		if !flagVerbose {
			fmt.Fprintln(w, "Rerun with --verbose to log the full response.")
		}
	}
	exitCode = exitCodeFor(err)
}

const rawExcerptLen = 500

// excerpt trims s to at most n runes, marking the cut.
func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(checklistCmd)
	rootCmd.AddCommand(precommitCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}
