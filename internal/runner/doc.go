// Package runner executes an ordered list of candidate commands and accepts
// the first that succeeds.
//
// Run only sequences and aggregates. Executing a command belongs to an
// Executor: ShellExecutor waits for the real exit status under a timeout,
// and GraceExecutor reproduces a fixed grace-window heuristic for hosts that
// cannot observe process exit.
package runner
