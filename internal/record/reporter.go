package record

import (
	"time"

	"xtr/internal/report"
)

// EventRecorder adapts a Recorder to report.Reporter: every dispatcher
// event is projected into a TestEventSummary line in run.log.zst, and a
// TestFinished event's captured stdout/stderr is handed to RecordOutput
// before the entry is written, so run.log.zst's stdout_ref/stderr_ref
// fields always point at an already-written store.zip entry.
//
// now is injected (rather than calling time.Now directly) so tests can
// pin deterministic timestamps; cmd/run.go wires it to time.Now.
type EventRecorder struct {
	rec *Recorder
	now func() time.Time
}

// NewEventRecorder builds an EventRecorder writing through rec.
func NewEventRecorder(rec *Recorder, now func() time.Time) *EventRecorder {
	return &EventRecorder{rec: rec, now: now}
}

func (e *EventRecorder) StartRun(runID string) {
	e.rec.RecordEvent(TestEventSummary{Timestamp: e.now(), Kind: string(report.EventRunStarted), RunID: runID})
}

func (e *EventRecorder) Event(ev report.Event) {
	summary := TestEventSummary{
		Timestamp: e.now(),
		Kind:      string(ev.Kind),
		RunID:     ev.RunID,
		Binary:    ev.AttemptID.Binary,
		Test:      ev.AttemptID.Test,
		Attempt:   ev.AttemptID.Attempt,
		StressIdx: ev.AttemptID.StressIdx,
	}

	if ev.Kind == report.EventTestFinished {
		summary.Outcome = ev.Outcome.Kind
		summary.Passed = ev.Outcome.Passed
		summary.Leaked = ev.Outcome.Leaked
		summary.Details = ev.Outcome.Details

		if len(ev.Outcome.Stdout) > 0 {
			if entry, err := e.rec.RecordOutput(KindStdout, ev.Outcome.Stdout); err == nil {
				summary.StdoutRef = entry.Name
			}
		}
		if len(ev.Outcome.Stderr) > 0 {
			if entry, err := e.rec.RecordOutput(KindStderr, ev.Outcome.Stderr); err == nil {
				summary.StderrRef = entry.Name
			}
		}
	}

	e.rec.RecordEvent(summary)
}

func (e *EventRecorder) FinishRun(summary report.RunSummary) {
	e.rec.RecordEvent(TestEventSummary{Timestamp: e.now(), Kind: string(report.EventRunFinished), RunID: "", Details: summaryDetails(summary)})
}

func summaryDetails(s report.RunSummary) string {
	if s.Cancelled {
		return "cancelled"
	}
	if s.Failed > 0 {
		return "failed"
	}
	return "passed"
}
