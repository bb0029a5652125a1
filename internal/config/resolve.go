package config

import (
	"fmt"

	"xtr/internal/ids"
)

// BuildPlatform is the host (and optional cross-compilation target)
// platform a config is being evaluated against.
type BuildPlatform struct {
	Host ids.PlatformContext
	Target *ids.PlatformContext
}

// ApplyBuildPlatforms computes every override's host_eval / host_test_eval
// / target_eval booleans. A nil platform predicate evaluates true for
// every platform already (ids.PlatformExpr.Eval's nil-receiver case),
// which is "unknown-result evaluations are treated as true"
// conservative-include rule applied at the predicate level.
func (c *NextestConfig) ApplyBuildPlatforms(bp BuildPlatform) {
	for _, p := range c.Profiles {
		for _, ov := range p.Overrides {
			ov.hostEval = ov.Platform.Eval(bp.Host)
			ov.hostTestEval = ov.hostEval
			if bp.Target != nil {
				ov.targetEval = ov.Platform.Eval(*bp.Target)
			} else {
				ov.targetEval = ov.hostEval
			}
		}
	}
}

// TestQuery identifies one (binary, test) pair and the context needed to
// evaluate overrides against it.
type TestQuery struct {
	Binary ids.BinaryID
	Test ids.TestName
	FilterCtx ids.FilterContext
	IsBench bool
}

// SettingsForTest implements "Settings-for-test" query:
// walk a profile's overrides in declaration order, skip those whose
// platform booleans are false or whose filter does not match, and for
// each setting take the first encountered override value; anything left
// unset falls through to the profile's own (already-inherited) defaults.
//
// Slow-timeout has one documented asymmetry: bench runs consult only
// bench-timeout, with no fallback to the plain slow-timeout at override
// scope.
func (c *NextestConfig) SettingsForTest(profileName string, q TestQuery) (Settings, error) {
	p, ok := c.Profiles[profileName]
	if !ok {
		return Settings{}, fmt.Errorf("unknown profile %q", profileName)
	}

	var acc SettingsDelta
	for _, ov := range p.Overrides {
		if ov.IsDefaultFilter {
			continue // default-filter deltas are consulted by ListSettings, not here
		}
		if !ov.hostEval {
			continue
		}
		if ov.Filter != nil && !ov.Filter.Eval(q.FilterCtx) {
			continue
		}
		acc = firstSomeWins(acc, ov.Settings)
	}

	merged := mergeSettingsDelta(p.Defaults, acc)
	return finalizeSettings(merged, q.IsBench), nil
}

// firstSomeWins fills in any field of acc that is still unset from ov,
// without ever overwriting a field acc already has — implementing "the
// first encountered Some(value) wins" across overrides visited in order.
func firstSomeWins(acc, ov SettingsDelta) SettingsDelta {
	if acc.DefaultFilter == nil {
		acc.DefaultFilter = ov.DefaultFilter
	}
	if acc.TestThreads == nil {
		acc.TestThreads = ov.TestThreads
	}
	if acc.ThreadsRequired == nil {
		acc.ThreadsRequired = ov.ThreadsRequired
	}
	if acc.Retries == nil {
		acc.Retries = ov.Retries
	}
	if acc.SlowTimeout == nil {
		acc.SlowTimeout = ov.SlowTimeout
	}
	if acc.BenchSlowTimeout == nil {
		acc.BenchSlowTimeout = ov.BenchSlowTimeout
	}
	if acc.LeakTimeout == nil {
		acc.LeakTimeout = ov.LeakTimeout
	}
	if acc.FailureOutput == nil {
		acc.FailureOutput = ov.FailureOutput
	}
	if acc.SuccessOutput == nil {
		acc.SuccessOutput = ov.SuccessOutput
	}
	if acc.Junit == nil {
		acc.Junit = ov.Junit
	}
	if acc.StatusLevel == nil {
		acc.StatusLevel = ov.StatusLevel
	}
	if acc.FinalStatusLevel == nil {
		acc.FinalStatusLevel = ov.FinalStatusLevel
	}
	if acc.MaxFail == nil {
		acc.MaxFail = ov.MaxFail
	}
	if acc.RunExtraArgs == nil {
		acc.RunExtraArgs = ov.RunExtraArgs
	}
	if acc.Archive == nil {
		acc.Archive = ov.Archive
	}
	if acc.Group == nil {
		acc.Group = ov.Group
	}
	if acc.WrapperScript == nil {
		acc.WrapperScript = ov.WrapperScript
	}
	return acc
}

func finalizeSettings(d SettingsDelta, isBench bool) Settings {
	s := Settings{
		TestThreads: deref(d.TestThreads, 0),
		ThreadsRequired: deref(d.ThreadsRequired, 1),
		FailureOutput: derefDisplay(d.FailureOutput, DisplayImmediate),
		SuccessOutput: derefDisplay(d.SuccessOutput, DisplayNever),
		StatusLevel: derefLevel(d.StatusLevel, StatusLevelPass),
		FinalStatusLevel: derefLevel(d.FinalStatusLevel, StatusLevelFail),
		RunExtraArgs: d.RunExtraArgs,
		DefaultFilter: d.DefaultFilter,
	}
	if d.Retries != nil {
		s.Retries = *d.Retries
	} else {
		s.Retries = ids.NoRetries
	}
	if isBench {
		if d.BenchSlowTimeout != nil {
			s.SlowTimeout = *d.BenchSlowTimeout
		}
		// else: left as the zero value deliberately — no fallback to
		// plain slow-timeout (Open Question 1).
	} else if d.SlowTimeout != nil {
		s.SlowTimeout = *d.SlowTimeout
	}
	if d.LeakTimeout != nil {
		s.LeakTimeout = *d.LeakTimeout
	}
	if d.Junit != nil {
		s.Junit = *d.Junit
	}
	if d.MaxFail != nil {
		s.MaxFail = *d.MaxFail
	} else {
		s.MaxFail = MaxFail{All: true}
	}
	if d.Archive != nil {
		s.Archive = *d.Archive
	}
	if d.Group != nil {
		s.Group = *d.Group
	}
	if d.WrapperScript != nil {
		s.WrapperScript = *d.WrapperScript
	}
	return s
}

func deref(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

func derefDisplay(p *TestOutputDisplay, fallback TestOutputDisplay) TestOutputDisplay {
	if p == nil {
		return fallback
	}
	return *p
}

func derefLevel(p *StatusLevel, fallback StatusLevel) StatusLevel {
	if p == nil {
		return fallback
	}
	return *p
}

// ListSettings implements "List-settings" pass: it selects
// the list-time wrapper script for a (binary, test) pair: the first
// host-matching override (default-filter or filter alike) that sets
// wrapper-script, else the profile default. Overrides whose filter references runtime-only
// leaves were already statically rejected at compile time (Compile, step
// 4), so every filter encountered here is safe to evaluate before a
// binary's test list is known.
func (c *NextestConfig) ListSettings(profileName string, q TestQuery) (ids.ScriptID, error) {
	p, ok := c.Profiles[profileName]
	if !ok {
		return "", fmt.Errorf("unknown profile %q", profileName)
	}

	wrapper := p.Defaults.WrapperScript
	for _, ov := range p.Overrides {
		if !ov.hostEval {
			continue
		}
		if ov.Settings.WrapperScript == nil {
			continue
		}
		if ov.IsDefaultFilter {
			if ov.Filter != nil && !ov.Filter.Eval(q.FilterCtx) {
				continue
			}
		} else if ov.Filter != nil && !ov.Filter.Eval(q.FilterCtx) {
			continue
		}
		wrapper = ov.Settings.WrapperScript
		break
	}
	if wrapper == nil {
		return "", nil
	}
	return *wrapper, nil
}
