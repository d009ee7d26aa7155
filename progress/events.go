// Package progress reports the progress of a conversion batch.
package progress

import (
	"time"

	"github.com/mzhaom/polygames-crossgame/gamewrapper"
)

// EventType identifies the kind of progress event.
type EventType int

const (
	EventBatchStart EventType = iota
	EventPassStart
	EventJobStart
	EventJobSkipped
	EventJobComplete
	EventError
)

// Event is the interface for all progress events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BatchStartEvent fires once before any pass runs.
type BatchStartEvent struct {
	ts     time.Time
	RunID  string
	Passes int
	DryRun bool
}

// Type returns the event type.
func (e BatchStartEvent) Type() EventType { return EventBatchStart }

// Timestamp returns when the event occurred.
func (e BatchStartEvent) Timestamp() time.Time { return e.ts }

// NewBatchStartEvent creates a new batch start event.
func NewBatchStartEvent(runID string, passes int, dryRun bool) BatchStartEvent {
	return BatchStartEvent{ts: time.Now(), RunID: runID, Passes: passes, DryRun: dryRun}
}

// PassStartEvent fires when the driver starts a job group.
type PassStartEvent struct {
	ts      time.Time
	Name    string
	Sources int
}

// Type returns the event type.
func (e PassStartEvent) Type() EventType { return EventPassStart }

// Timestamp returns when the event occurred.
func (e PassStartEvent) Timestamp() time.Time { return e.ts }

// NewPassStartEvent creates a new pass start event.
func NewPassStartEvent(name string, sources int) PassStartEvent {
	return PassStartEvent{ts: time.Now(), Name: name, Sources: sources}
}

// JobStartEvent fires right before the converter is invoked for a job.
// Mapping is nil for board-size conversions, which transfer no channels.
type JobStartEvent struct {
	ts            time.Time
	SourceGame    string
	SourceOptions []string
	TargetGame    string
	TargetOptions []string
	Output        string
	Mapping       *gamewrapper.ChannelMapping
}

// Type returns the event type.
func (e JobStartEvent) Type() EventType { return EventJobStart }

// Timestamp returns when the event occurred.
func (e JobStartEvent) Timestamp() time.Time { return e.ts }

// NewJobStartEvent creates a new job start event.
func NewJobStartEvent(srcGame string, srcOptions []string, dstGame string, dstOptions []string, output string, mapping *gamewrapper.ChannelMapping) JobStartEvent {
	return JobStartEvent{
		ts:            time.Now(),
		SourceGame:    srcGame,
		SourceOptions: srcOptions,
		TargetGame:    dstGame,
		TargetOptions: dstOptions,
		Output:        output,
		Mapping:       mapping,
	}
}

// JobSkippedEvent fires when a source option set or a single job is not converted.
type JobSkippedEvent struct {
	ts      time.Time
	Game    string
	Options []string
	Output  string // empty when a whole source option set is skipped
	Reason  string
}

// Type returns the event type.
func (e JobSkippedEvent) Type() EventType { return EventJobSkipped }

// Timestamp returns when the event occurred.
func (e JobSkippedEvent) Timestamp() time.Time { return e.ts }

// NewJobSkippedEvent creates a new job skipped event.
func NewJobSkippedEvent(game string, options []string, output, reason string) JobSkippedEvent {
	return JobSkippedEvent{ts: time.Now(), Game: game, Options: options, Output: output, Reason: reason}
}

// JobCompleteEvent fires when the converter exits.
type JobCompleteEvent struct {
	ts       time.Time
	Output   string
	ExitCode int
	Duration time.Duration
	Err      error
}

// Type returns the event type.
func (e JobCompleteEvent) Type() EventType { return EventJobComplete }

// Timestamp returns when the event occurred.
func (e JobCompleteEvent) Timestamp() time.Time { return e.ts }

// NewJobCompleteEvent creates a new job complete event.
func NewJobCompleteEvent(output string, exitCode int, duration time.Duration, err error) JobCompleteEvent {
	return JobCompleteEvent{ts: time.Now(), Output: output, ExitCode: exitCode, Duration: duration, Err: err}
}

// ErrorEvent fires on errors.
type ErrorEvent struct {
	ts      time.Time
	Err     error
	Context string
}

// Type returns the event type.
func (e ErrorEvent) Type() EventType { return EventError }

// Timestamp returns when the event occurred.
func (e ErrorEvent) Timestamp() time.Time { return e.ts }

// NewErrorEvent creates a new error event.
func NewErrorEvent(err error, context string) ErrorEvent {
	return ErrorEvent{ts: time.Now(), Err: err, Context: context}
}
