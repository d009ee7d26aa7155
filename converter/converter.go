// Package converter invokes the external Polygames checkpoint conversion CLI.
//
// The converter is a separate program (by default "python -u -m pypolygames")
// that reads a source checkpoint, remaps or re-initialises its parameters and
// writes a new checkpoint. This package only builds its command line and runs
// it; it never retries and never interprets the converter's output.
package converter

import "context"

// Converter runs conversion commands through a Runner.
type Converter struct {
	entrypoint []string
	runner     Runner
}

// Option configures a Converter.
type Option func(*Converter)

// WithEntrypoint replaces DefaultEntrypoint.
func WithEntrypoint(argv ...string) Option {
	return func(c *Converter) {
		if len(argv) > 0 {
			c.entrypoint = append([]string(nil), argv...)
		}
	}
}

// New creates a Converter. A nil runner executes commands as child processes.
func New(runner Runner, opts ...Option) *Converter {
	if runner == nil {
		runner = &ExecRunner{}
	}
	c := &Converter{
		entrypoint: append([]string(nil), DefaultEntrypoint...),
		runner:     runner,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Argv returns the full command line for cmd.
func (c *Converter) Argv(cmd Command) []string {
	argv := make([]string, 0, len(c.entrypoint)+16)
	argv = append(argv, c.entrypoint...)
	return append(argv, cmd.Args()...)
}

// Convert runs cmd and waits for it to exit, returning its exit code.
func (c *Converter) Convert(ctx context.Context, cmd Command) (int, error) {
	return c.runner.Run(ctx, c.Argv(cmd))
}
