// Package cli wires together the Cobra command tree for the prreview binary.
//
// It defines the root command and all subcommands (review, describe,
// checklist, precommit, hook, show, publish, config, models, cache, version),
// binds flags, reads configuration, invokes the orchestrator, and returns
// deterministic exit codes for CI gating and git hooks.
package cli
