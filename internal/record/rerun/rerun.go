// Package rerun derives, given the previous run's rerun-info, the
// current run's test list, and the outcomes observed in its event log, a
// new rerun-info of the same shape: the set of tests a `--rerun`
// invocation should still run.
package rerun

import "xtr/internal/ids"

// PrevStatus is a test's status as of the previous rerun-info, or Unknown
// if the test was never seen before.
type PrevStatus int

const (
	PrevUnknown PrevStatus = iota
	PrevPassing
	PrevOutstanding
)

// Status is the decision table's output: the test's status in the new
// rerun-info.
type Status int

const (
	StatusNotTracked Status = iota
	StatusPassing
	StatusOutstanding
)

func (s Status) String() string {
	switch s {
	case StatusPassing:
		return "passing"
	case StatusOutstanding:
		return "outstanding"
	default:
		return "not-tracked"
	}
}

// FilterKind classifies how a test relates to the current run's listing
// and filterset.
type FilterKind int

const (
	// FilterBinaryNotPresent means the binary this test belongs to was
	// not present at all in the current run (e.g. not rebuilt).
	FilterBinaryNotPresent FilterKind = iota
	// FilterBinarySkipped means the binary was present but excluded
	// entirely (e.g. by a binary-level filter).
	FilterBinarySkipped
	// FilterTestNotInList means the binary was listed but this test name
	// did not appear in its --list output.
	FilterTestNotInList
	// FilterMatches means the test was listed and matched the run's
	// filterset, i.e. it was a scheduling candidate.
	FilterMatches
	// FilterMismatch means the test was listed but excluded by the
	// filterset, for the given reason.
	FilterMismatch
)

// FilterResult is the per-test filter classification fed into Compute.
type FilterResult struct {
	Kind FilterKind
	Reason ids.MismatchReason // only meaningful when Kind == FilterMismatch
}

// Outcome is what the current run's event log recorded for this test, or
// None if it never reached a terminal event (e.g. the run was cancelled
// mid-flight).
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomePassed
	OutcomeFailed
	OutcomeSkippedRerun // implicitly skipped: a prior run already passed it
	OutcomeSkippedExplicit // explicitly skipped by the user (e.g. --skip)
)

// Compute applies this decision table to one test. It is pure
// and exhaustively covers every (PrevStatus, FilterKind, Outcome)
// combination the table enumerates.
func Compute(prev PrevStatus, filter FilterResult, outcome Outcome) Status {
	switch filter.Kind {
	case FilterBinaryNotPresent, FilterBinarySkipped:
		return carryForward(prev)

	case FilterTestNotInList:
		// Outstanding survives; Passing drops to NotTracked, so a test
		// that disappears then reappears is rerun from scratch.
		if prev == PrevOutstanding {
			return StatusOutstanding
		}
		return StatusNotTracked

	case FilterMatches:
		switch outcome {
		case OutcomePassed:
			return StatusPassing
		case OutcomeFailed, OutcomeNone:
			return StatusOutstanding
		case OutcomeSkippedRerun:
			return StatusPassing
		case OutcomeSkippedExplicit:
			return carryForward(prev)
		default:
			return carryForward(prev)
		}

	case FilterMismatch:
		if filter.Reason == ids.MismatchRerunAlreadyPassed {
			return StatusPassing
		}
		return carryForward(prev)

	default:
		return carryForward(prev)
	}
}

func carryForward(prev PrevStatus) Status {
	switch prev {
	case PrevPassing:
		return StatusPassing
	case PrevOutstanding:
		return StatusOutstanding
	default:
		return StatusNotTracked
	}
}
