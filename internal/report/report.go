// Package report defines the reporting boundary's dynamic-dispatch
// capability set: start_run, event, finish_run, and the event/summary
// schema the dispatcher and recorder exchange over it. It intentionally
// ships no concrete renderer: terminal styling, progress bars, and other
// presentation surfaces are out of scope.
package report

import (
	"time"

	"xtr/internal/ids"
)

// EventKind enumerates the dispatcher/supervisor-level events a reporter
// can receive.
type EventKind string

const (
	EventRunStarted EventKind = "run-started"
	EventTestStarted EventKind = "test-started"
	EventSlow EventKind = "slow"
	EventAttemptFailedWillRetry EventKind = "attempt-failed-will-retry"
	EventRetryStarted EventKind = "retry-started"
	EventTestFinished EventKind = "test-finished"
	EventRunPaused EventKind = "run-paused"
	EventRunContinued EventKind = "run-continued"
	EventRunBeginCancel EventKind = "run-begin-cancel"
	EventRunFinished EventKind = "run-finished"
)

// Event is one entry in the dispatcher's totally-ordered event stream
//. Fields irrelevant to Kind are left zero.
type Event struct {
	Kind EventKind
	RunID string
	AttemptID ids.AttemptID
	Delay time.Duration // AttemptFailedWillRetry
	Outcome Outcome // TestFinished
}

// Outcome is the reporter-facing projection of a supervised attempt's
// result, kept free of the
// internal/supervisor dependency so report has no import cycle back to
// the process-supervision layer.
type Outcome struct {
	Kind string // "pass" | "leak" | "fail" | "exec-fail" | "timeout"
	Passed bool
	Leaked bool
	Details string

	// Stdout/Stderr are the attempt's captured output, handed through
	// verbatim so a recorder (internal/record) can truncate, content-
	// address, and dictionary-compress them without internal/dispatch
	// needing to know anything about archive formats.
	Stdout []byte
	Stderr []byte
}

// RunSummary is passed to FinishRun once every supervisor has terminated.
type RunSummary struct {
	Passed int
	Failed int
	ExecFailed int
	Leaked int
	TimedOut int
	Cancelled bool
}

// Reporter is the capability set a run driver needs: start, stream
// events, and finish. internal/dispatch depends only on this interface,
// never on a concrete renderer.
type Reporter interface {
	StartRun(runID string)
	Event(ev Event)
	FinishRun(summary RunSummary)
}

// NopReporter discards everything; useful as a default when no renderer
// is wired (e.g. in tests or `xtr list`).
type NopReporter struct{}

func (NopReporter) StartRun(string) {}
func (NopReporter) Event(Event) {}
func (NopReporter) FinishRun(RunSummary) {}
