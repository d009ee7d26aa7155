package batch

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Failure is a conversion whose converter exited with an error.
type Failure struct {
	Job      Job
	Output   string
	ExitCode int
	Err      error
}

// Summary counts the outcome of a batch. Counters are updated by the driver
// and may be read once Run returns.
type Summary struct {
	mu sync.Mutex

	Scheduled      int // jobs handed to the converter
	Converted      int
	Resumed        int // jobs skipped because an earlier run converted them
	SkippedSources int // source option sets without a usable checkpoint
	Failures       []Failure
	Duration       time.Duration
}

func (s *Summary) schedule() {
	s.mu.Lock()
	s.Scheduled++
	s.mu.Unlock()
}

func (s *Summary) convert() {
	s.mu.Lock()
	s.Converted++
	s.mu.Unlock()
}

func (s *Summary) resume() {
	s.mu.Lock()
	s.Resumed++
	s.mu.Unlock()
}

func (s *Summary) skipSource() {
	s.mu.Lock()
	s.SkippedSources++
	s.mu.Unlock()
}

func (s *Summary) fail(f Failure) {
	s.mu.Lock()
	s.Failures = append(s.Failures, f)
	s.mu.Unlock()
}

// Failed reports whether any conversion failed.
func (s *Summary) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Failures) > 0
}

// Print writes the final statistics to w.
func (s *Summary) Print(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, "CONVERSION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Scheduled:          %d\n", s.Scheduled)
	fmt.Fprintf(w, "Converted:          %d\n", s.Converted)
	fmt.Fprintf(w, "Failed:             %d\n", len(s.Failures))
	fmt.Fprintf(w, "Resumed:            %d\n", s.Resumed)
	fmt.Fprintf(w, "Skipped sources:    %d\n", s.SkippedSources)
	fmt.Fprintf(w, "Duration:           %.1fs\n", s.Duration.Seconds())
	if len(s.Failures) > 0 {
		fmt.Fprintln(w, strings.Repeat("-", 60))
		fmt.Fprintln(w, "Failures:")
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  %s (exit code %d)\n", f.Output, f.ExitCode)
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 60))
}
