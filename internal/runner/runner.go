package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Mode decides whether exhausting every candidate is an error.
type Mode int

const (
	// BestEffort treats "no candidate succeeded" as "step not applicable".
	BestEffort Mode = iota
	// Required treats "no candidate succeeded" as a failure.
	Required
)

func (m Mode) String() string {
	if m == Required {
		return "required"
	}
	return "best-effort"
}

// Executor runs a single command in dir and reports whether it succeeded.
type Executor interface {
	Exec(ctx context.Context, command, dir string) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, command, dir string) error

func (f ExecutorFunc) Exec(ctx context.Context, command, dir string) error {
	return f(ctx, command, dir)
}

// Attempt records one candidate execution.
type Attempt struct {
	Command  string
	Err      error
	Duration time.Duration
}

// Result summarises a Run.
type Result struct {
	Mode Mode
	// Succeeded is the first candidate that succeeded, or "".
	Succeeded string
	// Skipped is set in BestEffort mode when nothing succeeded.
	Skipped  bool
	Attempts []Attempt
}

// OK reports whether a candidate succeeded.
func (r Result) OK() bool { return r.Succeeded != "" }

// CommandFailure is returned in Required mode when every candidate failed.
type CommandFailure struct {
	Attempts []Attempt
}

func (e *CommandFailure) Error() string {
	if len(e.Attempts) == 0 {
		return "no command configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%q: %v", a.Command, a.Err))
	}
	return "all commands failed: " + strings.Join(parts, "; ")
}

// Run executes candidates in order and stops at the first success. In
// BestEffort mode the returned error is always nil. In Required mode it is a
// *CommandFailure when no candidate succeeded, or the context error when the
// run was cancelled.
func Run(ctx context.Context, exec Executor, candidates []string, dir string, mode Mode) (Result, error) {
	res := Result{Mode: mode}
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			if mode == Required {
				return res, err
			}
			break
		}

		start := time.Now()
		err := exec.Exec(ctx, c, dir)
		a := Attempt{Command: c, Err: err, Duration: time.Since(start)}
		res.Attempts = append(res.Attempts, a)

		log.Debug().
			Str("command", c).
			Str("mode", mode.String()).
			Dur("elapsed", a.Duration).
			Err(err).
			Msg("candidate finished")

		if err == nil {
			res.Succeeded = c
			return res, nil
		}
	}

	if mode == BestEffort {
		res.Skipped = true
		return res, nil
	}
	return res, &CommandFailure{Attempts: res.Attempts}
}
