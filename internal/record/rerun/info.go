package rerun

import "xtr/internal/ids"

// BinaryInfo is one binary's slice of a rerun-info: the tests within it
// known Passing vs. still Outstanding. NotTracked tests are simply
// absent — there is nothing to carry forward for them.
type BinaryInfo struct {
	Passing []ids.TestName `json:"passing"`
	Outstanding []ids.TestName `json:"outstanding"`
}

// Info is the top-level rerun-info shape persisted to
// meta/rerun-info.json and fed back in as the Prev input of the next
// run's computation.
type Info struct {
	Binaries map[ids.BinaryID]BinaryInfo `json:"binaries"`
}

func (info *Info) status(binary ids.BinaryID, test ids.TestName) PrevStatus {
	if info == nil {
		return PrevUnknown
	}
	b, ok := info.Binaries[binary]
	if !ok {
		return PrevUnknown
	}
	for _, t := range b.Passing {
		if t == test {
			return PrevPassing
		}
	}
	for _, t := range b.Outstanding {
		if t == test {
			return PrevOutstanding
		}
	}
	return PrevUnknown
}

// BinaryPresence classifies how a binary fared in the current run's
// discovery/listing phase — the first axis of this filter
// result.
type BinaryPresence int

const (
	BinaryPresent BinaryPresence = iota
	BinaryNotPresent
	BinarySkipped
)

// Listing is the current run's view of one binary: whether it was
// present, and for each test it listed, the filterset's verdict.
type Listing struct {
	Presence BinaryPresence
	Tests map[ids.TestName]ids.FilterMatch
}

// TestList maps every binary touched by listing to its Listing. Binaries
// that appear only in a previous rerun-info (and not here at all) are
// implicitly BinaryNotPresent.
type TestList map[ids.BinaryID]Listing

// Outcomes maps (binary, test) pairs to what the current run's event log
// recorded for them. Pairs absent here but present in TestList as
// FilterMatches are treated as OutcomeNone — scheduled but never
// finished (e.g. run was cancelled).
type Outcomes map[ids.BinaryID]map[ids.TestName]Outcome

func (o Outcomes) lookup(binary ids.BinaryID, test ids.TestName) Outcome {
	if byTest, ok := o[binary]; ok {
		if outcome, ok := byTest[test]; ok {
			return outcome
		}
	}
	return OutcomeNone
}

// ComputeAll derives a new Info from the previous rerun-info (nil on a
// first run), the current run's test list, and its observed outcomes. It
// iterates every binary mentioned by either input, and within it every
// test mentioned by either input, applying Compute to each.
func ComputeAll(prev *Info, list TestList, outcomes Outcomes) *Info {
	result := &Info{Binaries: make(map[ids.BinaryID]BinaryInfo)}

	binaries := make(map[ids.BinaryID]struct{})
	if prev != nil {
		for b := range prev.Binaries {
			binaries[b] = struct{}{}
		}
	}
	for b := range list {
		binaries[b] = struct{}{}
	}

	for binary := range binaries {
		listing, present := list[binary]

		tests := make(map[ids.TestName]struct{})
		if prev != nil {
			if b, ok := prev.Binaries[binary]; ok {
				for _, t := range b.Passing {
					tests[t] = struct{}{}
				}
				for _, t := range b.Outstanding {
					tests[t] = struct{}{}
				}
			}
		}
		if present {
			for t := range listing.Tests {
				tests[t] = struct{}{}
			}
		}

		var bi BinaryInfo
		for test := range tests {
			filter := classify(present, listing, test)
			outcome := OutcomeNone
			if filter.Kind == FilterMatches {
				outcome = outcomes.lookup(binary, test)
			}
			status := Compute(prev.status(binary, test), filter, outcome)
			switch status {
			case StatusPassing:
				bi.Passing = append(bi.Passing, test)
			case StatusOutstanding:
				bi.Outstanding = append(bi.Outstanding, test)
			}
		}
		if len(bi.Passing) > 0 || len(bi.Outstanding) > 0 {
			result.Binaries[binary] = bi
		}
	}

	return result
}

func classify(present bool, listing Listing, test ids.TestName) FilterResult {
	if !present {
		return FilterResult{Kind: FilterBinaryNotPresent}
	}
	if listing.Presence == BinarySkipped {
		return FilterResult{Kind: FilterBinarySkipped}
	}
	match, ok := listing.Tests[test]
	if !ok {
		return FilterResult{Kind: FilterTestNotInList}
	}
	if match.Matches {
		return FilterResult{Kind: FilterMatches}
	}
	return FilterResult{Kind: FilterMismatch, Reason: match.Reason}
}
