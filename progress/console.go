package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mzhaom/polygames-crossgame/gamewrapper"
)

// OutputMode controls verbosity level.
type OutputMode int

const (
	// OutputMinimal shows failures and the total time only.
	OutputMinimal OutputMode = iota
	// OutputNormal adds the per-job channel transfer report.
	OutputNormal
	// OutputVerbose adds skips and per-job exit status.
	OutputVerbose
)

// ConsoleReporter writes progress to the console.
type ConsoleReporter struct {
	mu        sync.Mutex
	out       io.Writer
	mode      OutputMode
	startTime time.Time

	currentPass string
	started     int
	failed      int
}

// ConsoleOption configures the console reporter.
type ConsoleOption func(*ConsoleReporter)

// WithOutput sets the output writer.
func WithOutput(w io.Writer) ConsoleOption {
	return func(r *ConsoleReporter) { r.out = w }
}

// WithMode sets the output verbosity.
func WithMode(mode OutputMode) ConsoleOption {
	return func(r *ConsoleReporter) { r.mode = mode }
}

// NewConsoleReporter creates a new console progress reporter.
func NewConsoleReporter(opts ...ConsoleOption) *ConsoleReporter {
	r := &ConsoleReporter{
		out:       os.Stdout,
		mode:      OutputNormal,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Event handles a progress event. Each event is written with a single write
// so reports of concurrently running jobs never interleave.
func (r *ConsoleReporter) Event(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	switch e := event.(type) {
	case BatchStartEvent:
		r.handleBatchStart(&b, e)
	case PassStartEvent:
		r.handlePassStart(&b, e)
	case JobStartEvent:
		r.handleJobStart(&b, e)
	case JobSkippedEvent:
		r.handleJobSkipped(&b, e)
	case JobCompleteEvent:
		r.handleJobComplete(&b, e)
	case ErrorEvent:
		fmt.Fprintf(&b, "  [ERROR] %s: %v\n", e.Context, e.Err)
	}
	if b.Len() > 0 {
		io.WriteString(r.out, b.String())
	}
}

// Close closes the reporter.
func (r *ConsoleReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.startTime)
	fmt.Fprintf(r.out, "\nTotal time: %s (%d jobs, %d failed)\n", formatDuration(elapsed), r.started, r.failed)
}

func (r *ConsoleReporter) handleBatchStart(b *strings.Builder, e BatchStartEvent) {
	if r.mode < OutputNormal {
		return
	}
	suffix := ""
	if e.DryRun {
		suffix = " (dry run)"
	}
	fmt.Fprintf(b, "Run %s: %d passes%s\n", e.RunID, e.Passes, suffix)
}

func (r *ConsoleReporter) handlePassStart(b *strings.Builder, e PassStartEvent) {
	r.currentPass = e.Name
	if r.mode < OutputNormal {
		return
	}
	fmt.Fprintf(b, "\n[PASS] %s (%d sources)\n", e.Name, e.Sources)
}

// handleJobStart prints the source and target configurations followed by one
// line per channel that is not copied onto itself.
func (r *ConsoleReporter) handleJobStart(b *strings.Builder, e JobStartEvent) {
	r.started++
	if r.mode < OutputNormal {
		return
	}
	b.WriteString(FormatJobReport(e))
	if r.mode >= OutputVerbose {
		fmt.Fprintf(b, "  -> %s\n", e.Output)
	}
}

func (r *ConsoleReporter) handleJobSkipped(b *strings.Builder, e JobSkippedEvent) {
	if r.mode < OutputVerbose {
		return
	}
	target := e.Output
	if target == "" {
		target = e.Game + " " + FormatOptions(e.Options)
	}
	fmt.Fprintf(b, "  [SKIP] %s: %s\n", target, e.Reason)
}

func (r *ConsoleReporter) handleJobComplete(b *strings.Builder, e JobCompleteEvent) {
	if e.Err != nil {
		r.failed++
		fmt.Fprintf(b, "  [FAILED] %s (exit code %d): %v\n", e.Output, e.ExitCode, e.Err)
		return
	}
	if r.mode < OutputVerbose {
		return
	}
	fmt.Fprintf(b, "  [OK] %s (%s)\n", e.Output, formatDuration(e.Duration))
}

// FormatJobReport renders the transfer report of one job.
func FormatJobReport(e JobStartEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nSource: %s (%s)\n", e.SourceGame, FormatOptions(e.SourceOptions))
	fmt.Fprintf(&b, "Target: %s (%s)\n", e.TargetGame, FormatOptions(e.TargetOptions))
	if e.Mapping != nil {
		writeRemaps(&b, "move", e.Mapping.MoveRemaps())
		writeRemaps(&b, "state", e.Mapping.StateRemaps())
	}
	return b.String()
}

func writeRemaps(b *strings.Builder, kind string, remaps []gamewrapper.Remap) {
	for _, rm := range remaps {
		fmt.Fprintf(b, "Transferring %s channel %d --> %d\n", kind, rm.Source, rm.Target)
	}
}

// FormatOptions renders option tokens as a bracketed, comma separated list.
func FormatOptions(options []string) string {
	return "[" + strings.Join(options, ", ") + "]"
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
