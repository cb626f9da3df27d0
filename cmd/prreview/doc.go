// Prreview is a local CLI that reviews the changes on a feature branch with
// an LLM provider before a pull request is opened.
//
// It validates the branch, gates oversized change sets, redacts secrets from
// the diff, and reports blocking issues, suggestions and notes with
// deterministic exit codes suitable for CI gating and git hooks.
//
// Usage:
//
//	prreview review                 # review the branch against baseBranch
//	prreview review --format sarif  # emit SARIF for code scanning
//	prreview describe               # draft a PR description
//	prreview checklist              # lint, build, tests and review check
//	prreview hook install           # review staged changes on every commit
//	prreview publish --pr 42        # post the last review to GitHub
package main
