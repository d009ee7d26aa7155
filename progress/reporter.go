package progress

import (
	"github.com/sirupsen/logrus"
)

// Reporter is the interface for progress reporting.
type Reporter interface {
	// Event sends a progress event. Implementations must be safe for
	// concurrent use.
	Event(event Event)

	// Close closes the reporter (flushes any buffered output).
	Close()
}

// NullReporter is a no-op implementation.
type NullReporter struct{}

// Event is a no-op.
func (NullReporter) Event(Event) {}

// Close is a no-op.
func (NullReporter) Close() {}

// LogReporter turns events into structured log entries, one per event.
type LogReporter struct {
	log logrus.FieldLogger
}

// NewLogReporter creates a reporter logging to log.
func NewLogReporter(log logrus.FieldLogger) *LogReporter {
	return &LogReporter{log: log}
}

// Event logs the event.
func (r *LogReporter) Event(event Event) {
	switch e := event.(type) {
	case BatchStartEvent:
		r.log.WithFields(logrus.Fields{"run_id": e.RunID, "passes": e.Passes, "dry_run": e.DryRun}).Info("batch started")
	case PassStartEvent:
		r.log.WithFields(logrus.Fields{"pass": e.Name, "sources": e.Sources}).Info("pass started")
	case JobStartEvent:
		fields := logrus.Fields{
			"source":         e.SourceGame,
			"source_options": e.SourceOptions,
			"target":         e.TargetGame,
			"target_options": e.TargetOptions,
			"output":         e.Output,
		}
		if e.Mapping != nil {
			fields["move_remaps"] = len(e.Mapping.MoveRemaps())
			fields["state_remaps"] = len(e.Mapping.StateRemaps())
		}
		r.log.WithFields(fields).Info("conversion started")
	case JobSkippedEvent:
		r.log.WithFields(logrus.Fields{"game": e.Game, "options": e.Options, "output": e.Output, "reason": e.Reason}).Info("skipped")
	case JobCompleteEvent:
		entry := r.log.WithFields(logrus.Fields{"output": e.Output, "exit_code": e.ExitCode, "elapsed": e.Duration.String()})
		if e.Err != nil {
			entry.WithError(e.Err).Error("conversion failed")
		} else {
			entry.Info("conversion finished")
		}
	case ErrorEvent:
		r.log.WithError(e.Err).Error(e.Context)
	}
}

// Close is a no-op.
func (r *LogReporter) Close() {}

// Tee returns a reporter sending every event to each of reporters in order.
func Tee(reporters ...Reporter) Reporter {
	return tee(reporters)
}

type tee []Reporter

func (t tee) Event(event Event) {
	for _, r := range t {
		r.Event(event)
	}
}

func (t tee) Close() {
	for _, r := range t {
		r.Close()
	}
}
