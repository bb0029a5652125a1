package rerun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"xtr/internal/ids"
)

func matches() ids.FilterMatch { return ids.FilterMatch{Matches: true} }

// TestComputeAllMixedRerun mirrors this scenario S4: an initial
// run lists {A: [t1, t2], B: [t3]}, t1 passes, t2 fails, t3 passes. The
// rerun-info should carry A.passing={t1}, A.outstanding={t2},
// B.passing={t3}. Feeding that back in with t2 now passing converges to
// A.passing={t1,t2}, B.passing={t3}, nothing outstanding.
func TestComputeAllMixedRerun(t *testing.T) {
	const a, b ids.BinaryID = "A", "B"
	const t1, t2, t3 ids.TestName = "t1", "t2", "t3"

	list := TestList{
		a: {Presence: BinaryPresent, Tests: map[ids.TestName]ids.FilterMatch{t1: matches(), t2: matches()}},
		b: {Presence: BinaryPresent, Tests: map[ids.TestName]ids.FilterMatch{t3: matches()}},
	}
	outcomes := Outcomes{
		a: {t1: OutcomePassed, t2: OutcomeFailed},
		b: {t3: OutcomePassed},
	}

	first := ComputeAll(nil, list, outcomes)
	assert.ElementsMatch(t, []ids.TestName{t1}, first.Binaries[a].Passing)
	assert.ElementsMatch(t, []ids.TestName{t2}, first.Binaries[a].Outstanding)
	assert.ElementsMatch(t, []ids.TestName{t3}, first.Binaries[b].Passing)
	assert.Empty(t, first.Binaries[b].Outstanding)

	secondOutcomes := Outcomes{
		a: {t1: OutcomePassed, t2: OutcomePassed},
		b: {t3: OutcomePassed},
	}
	second := ComputeAll(first, list, secondOutcomes)
	assert.ElementsMatch(t, []ids.TestName{t1, t2}, second.Binaries[a].Passing)
	assert.Empty(t, second.Binaries[a].Outstanding)
	assert.ElementsMatch(t, []ids.TestName{t3}, second.Binaries[b].Passing)
}

func TestComputeAllBinaryDisappearsThenReappears(t *testing.T) {
	const bin ids.BinaryID = "crate::lib"
	const test ids.TestName = "flaky"

	prev := &Info{Binaries: map[ids.BinaryID]BinaryInfo{bin: {Passing: []ids.TestName{test}}}}

	// Binary not rebuilt this run: status carries forward.
	gone := ComputeAll(prev, TestList{}, Outcomes{})
	assert.ElementsMatch(t, []ids.TestName{test}, gone.Binaries[bin].Passing)

	// Binary rebuilt but this test no longer in its --list output: a
	// Passing test drops to NotTracked (absent from the new info).
	reappeared := ComputeAll(prev, TestList{bin: {Presence: BinaryPresent, Tests: map[ids.TestName]ids.FilterMatch{}}}, Outcomes{})
	assert.NotContains(t, reappeared.Binaries, bin)
}
