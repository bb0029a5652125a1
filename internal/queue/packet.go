// Package queue binds each discovered test to its retry/backoff state and
// to the global/group concurrency slots it will occupy while running.
package queue

import (
	"time"

	"xtr/internal/ids"
)

// Packet is everything the dispatcher needs to schedule one test
// instance: its identity, its resolved retry policy (with the backoff
// delays already derived), and the group it competes for a slot in.
type Packet struct {
	RunID string
	Binary ids.BinaryID
	Test ids.TestName
	Group ids.GroupID
	ThreadsRequired int

	retries ids.RetryPolicy
	delays []time.Duration
	attempt int // 1-indexed; 1 on first attempt
	stressIdx *int
}

// NewPacket builds a Packet whose backoff delays are derived eagerly —
// the dispatcher's retry loop only ever needs to index
// into this slice, never recompute it mid-run.
func NewPacket(runID string, binary ids.BinaryID, test ids.TestName, group ids.GroupID, threadsRequired int, retries ids.RetryPolicy) *Packet {
	return &Packet{
		RunID: runID,
		Binary: binary,
		Test: test,
		Group: group,
		ThreadsRequired: threadsRequired,
		retries: retries,
		delays: retries.Backoff(nil),
		attempt: 1,
	}
}

// WithStressIndex tags the packet as one iteration of a stress run
// (glossary: "Stress index").
func (p *Packet) WithStressIndex(i int) *Packet {
	idx := i
	p.stressIdx = &idx
	return p
}

// Attempt returns the current 1-indexed attempt number.
func (p *Packet) Attempt() int { return p.attempt }

// TotalAttempts returns the total number of attempts this packet's
// retry policy allows (1 + retry count).
func (p *Packet) TotalAttempts() int { return p.retries.Attempts() }

// HasMoreAttempts reports whether a failing attempt should retry.
func (p *Packet) HasMoreAttempts() bool { return p.attempt < p.TotalAttempts() }

// NextDelay returns the backoff delay to sleep before the next attempt,
// and advances the packet's internal attempt counter. Calling it when
// HasMoreAttempts is false panics, since the dispatcher must never ask
// for a delay past the configured retry budget.
func (p *Packet) NextDelay() time.Duration {
	if !p.HasMoreAttempts() {
		panic("queue: NextDelay called with no attempts remaining")
	}
	delay := p.delays[p.attempt-1] // delays[i] is the wait before attempt i+2
	p.attempt++
	return delay
}

// AttemptID builds the stable identifier for the packet's current
// attempt (glossary: "Attempt ID").
func (p *Packet) AttemptID() ids.AttemptID {
	return ids.AttemptID{
		RunID: p.RunID,
		Binary: p.Binary,
		Test: p.Test,
		StressIdx: p.stressIdx,
		Attempt: p.attempt,
	}
}
