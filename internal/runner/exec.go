package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// DefaultTimeout bounds a single command run by ShellExecutor.
const DefaultTimeout = 5 * time.Minute

// DefaultGraceWindow is how long GraceExecutor waits before assuming success.
const DefaultGraceWindow = 5 * time.Second

// maxOutputTail is how much combined output is kept in an ExitError.
const maxOutputTail = 2048

// ExitError is a command that ran and exited non-zero, or was killed.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
	TimedOut bool
}

func (e *ExitError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s: timed out", e.Command)
	}
	return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
}

func shellCommand(ctx context.Context, command, dir string) *exec.Cmd {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = dir
	cmd.WaitDelay = 5 * time.Second
	return cmd
}

// ShellExecutor runs commands through the platform shell and waits for them
// to exit.
type ShellExecutor struct {
	// Timeout kills a command that runs longer. Zero means DefaultTimeout.
	Timeout time.Duration
}

func (s ShellExecutor) Exec(ctx context.Context, command, dir string) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := shellCommand(runCtx, command, dir)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &ExitError{Command: command, ExitCode: -1, Output: tail(out.String()), TimedOut: true}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: command, ExitCode: exitErr.ExitCode(), Output: tail(out.String())}
	}
	return fmt.Errorf("running %s: %w", command, err)
}

// GraceExecutor is for environments without reliable exit signalling. It
// starts the command and reports failure only if it exits non-zero within
// Window; a command still running after the window counts as succeeded and
// is left to finish on its own.
type GraceExecutor struct {
	Window time.Duration
}

func (g GraceExecutor) Exec(ctx context.Context, command, dir string) error {
	window := g.Window
	if window <= 0 {
		window = DefaultGraceWindow
	}

	// The process must outlive this call, so it is not tied to ctx.
	cmd := shellCommand(context.Background(), command, dir)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", command, err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Command: command, ExitCode: exitErr.ExitCode()}
		}
		return err
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxOutputTail {
		return s
	}
	return "..." + s[len(s)-maxOutputTail:]
}
