package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes a command line and blocks until it exits.
type Runner interface {
	// Run executes argv and returns the process exit code. A non-zero exit is
	// reported as both a non-zero code and a *ProcessError.
	Run(ctx context.Context, argv []string) (int, error)
}

// ExecRunner runs commands as child processes. The child's output is passed
// through to Stdout and Stderr, which default to the parent's streams.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Dir    string
	Env    []string // extra KEY=VALUE entries on top of the parent environment
}

// Run spawns argv and waits for it. There is no timeout; cancelling ctx
// kills the child.
func (r *ExecRunner) Run(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return -1, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if r.Dir != "" {
		cmd.Dir = r.Dir
	}
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	if err := cmd.Start(); err != nil {
		return -1, &ProcessError{Message: "failed to start converter", Cause: err}
	}

	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return -1, fmt.Errorf("converter interrupted: %w", ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return code, &ProcessError{Message: "converter exited with failure", ExitCode: code, Cause: err}
	}
	return -1, &ProcessError{Message: "failed waiting for converter", Cause: err}
}

// DryRunner prints commands instead of running them and always succeeds.
type DryRunner struct {
	Out io.Writer
}

// Run writes the shell-quoted command line to Out.
func (r *DryRunner) Run(_ context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return -1, ErrEmptyCommand
	}
	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, FormatCommand(argv))
	return 0, nil
}

// FormatCommand renders argv as a single shell-style line, quoting arguments
// that contain spaces or quotes.
func FormatCommand(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\"'\\$") {
			parts[i] = strconv.Quote(a)
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}
