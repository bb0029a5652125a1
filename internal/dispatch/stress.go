package dispatch

// StressOutcome accumulates the per-iteration pass/fail results of a
// stress run under the *any-fail-is-fail* rule: each iteration still produces its own TestFinished event, but
// the run's overall outcome for that test is Failed if any iteration
// failed. The transition is monotonic — once an iteration fails, no
// later passing iteration can bring the accumulated outcome back to
// Passed.
type StressOutcome struct {
	iterations int
	anyFailed bool
}

// Record folds in one iteration's pass/fail result.
func (s *StressOutcome) Record(passed bool) {
	s.iterations++
	if !passed {
		s.anyFailed = true
	}
}

// Iterations returns the number of iterations folded in so far.
func (s *StressOutcome) Iterations() int { return s.iterations }

// Passed reports the accumulated outcome: true only if every iteration
// recorded so far passed.
func (s *StressOutcome) Passed() bool { return !s.anyFailed }
