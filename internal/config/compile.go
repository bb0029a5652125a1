package config

import (
	"fmt"
	"strconv"
	"strings"

	"xtr/internal/ids"
)

// Compile runs over a loaded rawConfig: it compiles
// every override's platform/filterset predicates, validates group and
// script namespaces, resolves profile inheritance (detecting cycles), and
// checks that every referenced experimental feature is enabled. Returns
// the compiled config, any accumulated errors, and advisory warnings
// (a [[scripts]] block with no id, or a script with no command).
func Compile(raw *rawConfig, enabledFeatures map[string]bool) (*NextestConfig, ConfigErrors, []string) {
	var errs ConfigErrors
	var warnings []string

	cfg := &NextestConfig{
		Profiles: make(map[string]*Profile),
		TestGroups: make(map[ids.GroupID]TestGroupConfig),
		Scripts: make(map[ids.ScriptID]*ScriptConfig),
		ExperimentalFeatures: enabledFeatures,
	}

	// Step 3: validate and compile test groups.
	for _, tg := range raw.taggedGroups {
		tool := ""
		if tg.source.Kind == SourceTool {
			tool = tg.source.Tool
		}
		gid := ids.GroupID(tg.name)
		if err := validateGroupID(gid, tool); err != nil {
			errs.Add(StageCompile, tg.source.Path, "", "%v", err)
			continue
		}
		cfg.TestGroups[gid] = TestGroupConfig{ID: gid, MaxThreads: tg.group.MaxThreads}
	}

	// Step 4: validate and compile scripts, checking for ID collisions
	// between setup and wrapper scripts declared anywhere in the chain.
	seenIDs := make(map[ids.ScriptID]ScriptKind)
	for declOrder, ts := range raw.taggedScripts {
		if ts.script.ID == "" {
			warnings = append(warnings, fmt.Sprintf("%s: [[scripts]] block with no id is ignored", ts.source.Path))
			continue
		}
		sid := ids.ScriptID(ts.script.ID)
		tool := ""
		if ts.source.Kind == SourceTool {
			tool = ts.source.Tool
		} else if err := validateScriptID(sid, ""); err != nil {
			errs.Add(StageCompile, ts.source.Path, "", "%v", err)
			continue
		}
		if tool != "" {
			if err := validateScriptID(sid, tool); err != nil {
				errs.Add(StageCompile, ts.source.Path, "", "%v", err)
				continue
			}
		}

		kind := ScriptKind(ts.script.Kind)
		if kind != ScriptKindSetup && kind != ScriptKindWrapper {
			errs.Add(StageCompile, ts.source.Path, "", "script %q has unknown kind %q, must be \"setup\" or \"wrapper\"", sid, ts.script.Kind)
			continue
		}
		if len(ts.script.Command) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s: script %q declares neither a usable command", ts.source.Path, sid))
		}

		if prior, ok := seenIDs[sid]; ok && prior != kind {
			errs.Add(StageCompile, ts.source.Path, "", "script id %q is declared as both setup and wrapper", sid)
			continue
		}
		seenIDs[sid] = kind

		sc := &ScriptConfig{ID: sid, Kind: kind, Command: ts.script.Command, DeclOrder: declOrder}
		if ts.script.SlowTimeout != nil {
			sc.SlowTimeout = rawToSlowTimeout(*ts.script.SlowTimeout)
		}
		if ts.script.LeakTimeout != nil {
			sc.LeakTimeout = rawToLeakTimeout(*ts.script.LeakTimeout)
		}
		if ts.script.Junit != nil {
			sc.Junit = *ts.script.Junit
		}
		cfg.Scripts[sid] = sc
	}

	// Step 5: build typed profiles (without overrides yet) so inheritance
	// cycle detection has a complete graph to walk.
	typedProfiles := make(map[string]*Profile, len(raw.Profile))
	for name, rp := range raw.Profile {
		p := &Profile{Name: name, Extends: rp.Extends}
		p.Defaults = rawProfileToDelta(rp, &errs, name)
		typedProfiles[name] = p
	}
	for _, cycle := range detectInheritanceCycles(typedProfiles) {
		errs.Add(StageCompile, "", strings.Join(cycle, ","), "profile inheritance cycle: %s", strings.Join(cycle, " -> "))
	}
	if _, ok := typedProfiles["default"]; !ok {
		errs.Add(StageCompile, "", "default", "the \"default\" profile must always be present")
	}

	// Resolve inherited defaults for every extending profile. A profile in
	// a cycle is merged along its chain up to the first repeated profile;
	// the cycle itself is already a hard error above.
	for name, p := range typedProfiles {
		if p.Extends != "" {
			p.Defaults = resolveInheritance(typedProfiles, name)
		}
	}

	// Step 2: compile each profile's overrides.
	for name, rp := range raw.Profile {
		p := typedProfiles[name]
		for i, ro := range rp.Overrides {
			ov, err := compileOverride(ro)
			if err != nil {
				errs.Add(StageCompile, "", name, "override #%d: %v", i, err)
				continue
			}

			// Step 4 continued: list-time wrapper overrides may not
			// reference runtime-only filter leaves, and every override's
			// wrapper-script must name a known script.
			if ro.WrapperScript != "" {
				sid := ids.ScriptID(ro.WrapperScript)
				if _, ok := cfg.Scripts[sid]; !ok {
					errs.Add(StageCompile, "", name, "override #%d references unknown script %q", i, sid)
				}
				if ov.Filter != nil && ov.Filter.HasRuntimeOnlyLeaf() {
					errs.Add(StageCompile, "", name, "override #%d: list-time wrapper-script override may not use a filter with runtime-only leaves (e.g. test(...))", i)
				}
			}

			p.Overrides = append(p.Overrides, ov)
		}
	}

	// Step 6: experimental feature gating. Any feature name seen on a
	// construct (here: simply the declared list) must be enabled.
	for _, feat := range raw.Experimental {
		if enabledFeatures == nil || !enabledFeatures[feat] {
			errs.Add(StageCompile, "", "", "experimental feature %q is referenced by config but not enabled", feat)
		}
	}

	cfg.Profiles = typedProfiles
	return cfg, errs, warnings
}

func compileOverride(ro rawOverride) (*Override, error) {
	if ro.Platform == "" && ro.Filter == "" && ro.DefaultFilter == "" {
		return nil, fmt.Errorf("override must specify at least one of platform, filter, or default-filter")
	}
	if ro.Filter != "" && ro.DefaultFilter != "" {
		return nil, fmt.Errorf("override may not specify both filter and default-filter")
	}
	if ro.DefaultFilter != "" && ro.Platform == "" {
		return nil, fmt.Errorf("a default-filter delta requires a platform predicate")
	}

	ov := &Override{}

	if ro.Platform != "" {
		p, err := ids.ParsePlatformExpr(ro.Platform)
		if err != nil {
			return nil, fmt.Errorf("platform predicate: %w", err)
		}
		ov.Platform = p
	}

	filterSrc := ro.Filter
	if ro.DefaultFilter != "" {
		filterSrc = ro.DefaultFilter
		ov.IsDefaultFilter = true
	}
	if filterSrc != "" {
		f, err := ids.ParseFilterExpr(filterSrc)
		if err != nil {
			return nil, fmt.Errorf("filterset: %w", err)
		}
		ov.Filter = f
	}

	ov.Settings = rawOverrideToDelta(ro)
	return ov, nil
}

func rawProfileToDelta(rp rawProfile, errs *ConfigErrors, profileName string) SettingsDelta {
	var d SettingsDelta
	if rp.DefaultFilter != "" {
		f, err := ids.ParseFilterExpr(rp.DefaultFilter)
		if err != nil {
			errs.Add(StageCompile, "", profileName, "default-filter: %v", err)
		} else {
			d.DefaultFilter = f
		}
	}
	d.TestThreads = rp.TestThreads
	d.ThreadsRequired = rp.ThreadsRequired
	if rp.Retries != nil {
		r := rawToRetryPolicy(*rp.Retries)
		d.Retries = &r
	}
	if rp.SlowTimeout != nil {
		s := rawToSlowTimeout(*rp.SlowTimeout)
		d.SlowTimeout = &s
	}
	if rp.Bench != nil && rp.Bench.SlowTimeout != nil {
		s := rawToSlowTimeout(*rp.Bench.SlowTimeout)
		d.BenchSlowTimeout = &s
	}
	if rp.LeakTimeout != nil {
		l := rawToLeakTimeout(*rp.LeakTimeout)
		d.LeakTimeout = &l
	}
	if rp.FailureOutput != "" {
		v := TestOutputDisplay(rp.FailureOutput)
		d.FailureOutput = &v
	}
	if rp.SuccessOutput != "" {
		v := TestOutputDisplay(rp.SuccessOutput)
		d.SuccessOutput = &v
	}
	d.Junit = rp.Junit
	if rp.StatusLevel != "" {
		v := StatusLevel(rp.StatusLevel)
		d.StatusLevel = &v
	}
	if rp.FinalStatusLevel != "" {
		v := StatusLevel(rp.FinalStatusLevel)
		d.FinalStatusLevel = &v
	}
	if rp.MaxFail != "" {
		mf, err := parseMaxFail(rp.MaxFail)
		if err != nil {
			errs.Add(StageCompile, "", profileName, "max-fail: %v", err)
		} else {
			d.MaxFail = &mf
		}
	}
	d.RunExtraArgs = rp.RunExtraArgs
	d.Archive = rp.Archive
	if rp.Group != "" {
		g := ids.GroupID(rp.Group)
		d.Group = &g
	}
	if rp.WrapperScript != "" {
		s := ids.ScriptID(rp.WrapperScript)
		d.WrapperScript = &s
	}
	return d
}

func rawOverrideToDelta(ro rawOverride) SettingsDelta {
	var d SettingsDelta
	d.TestThreads = ro.TestThreads
	d.ThreadsRequired = ro.ThreadsRequired
	if ro.Retries != nil {
		r := rawToRetryPolicy(*ro.Retries)
		d.Retries = &r
	}
	if ro.SlowTimeout != nil {
		s := rawToSlowTimeout(*ro.SlowTimeout)
		d.SlowTimeout = &s
	}
	if ro.Bench != nil && ro.Bench.SlowTimeout != nil {
		s := rawToSlowTimeout(*ro.Bench.SlowTimeout)
		d.BenchSlowTimeout = &s
	}
	if ro.LeakTimeout != nil {
		l := rawToLeakTimeout(*ro.LeakTimeout)
		d.LeakTimeout = &l
	}
	if ro.FailureOutput != "" {
		v := TestOutputDisplay(ro.FailureOutput)
		d.FailureOutput = &v
	}
	if ro.SuccessOutput != "" {
		v := TestOutputDisplay(ro.SuccessOutput)
		d.SuccessOutput = &v
	}
	if ro.StatusLevel != "" {
		v := StatusLevel(ro.StatusLevel)
		d.StatusLevel = &v
	}
	if ro.FinalStatusLevel != "" {
		v := StatusLevel(ro.FinalStatusLevel)
		d.FinalStatusLevel = &v
	}
	if ro.MaxFail != "" {
		if mf, err := parseMaxFail(ro.MaxFail); err == nil {
			d.MaxFail = &mf
		}
	}
	if ro.Group != "" {
		g := ids.GroupID(ro.Group)
		d.Group = &g
	}
	if ro.WrapperScript != "" {
		s := ids.ScriptID(ro.WrapperScript)
		d.WrapperScript = &s
	}
	return d
}

func rawToRetryPolicy(r rawRetry) ids.RetryPolicy {
	switch r.Backoff {
	case "exponential":
		return ids.RetryPolicy{Exponential: &ids.ExponentialRetry{
			Count: r.Count, Delay: r.Delay, Jitter: r.Jitter, MaxDelay: r.MaxDelay,
		}}
	default:
		return ids.RetryPolicy{Fixed: &ids.FixedRetry{
			Count: r.Count, Delay: r.Delay, Jitter: r.Jitter,
		}}
	}
}

func rawToSlowTimeout(r rawSlowTimeout) ids.SlowTimeout {
	onTimeout := r.OnTimeout
	if onTimeout == "" {
		onTimeout = ids.OnTimeoutFail
	}
	return ids.SlowTimeout{
		Period: r.Period, TerminateAfter: r.TerminateAfter,
		GracePeriod: r.GracePeriod, OnTimeout: onTimeout,
	}
}

func rawToLeakTimeout(r rawLeakTimeout) ids.LeakTimeout {
	result := r.Result
	if result == "" {
		result = ids.LeakResultPass
	}
	return ids.LeakTimeout{Period: r.Period, Result: result}
}

func parseMaxFail(s string) (MaxFail, error) {
	if s == "none" || s == "all" {
		return MaxFail{All: true}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return MaxFail{}, fmt.Errorf("must be \"none\" or an integer, got %q", s)
	}
	return MaxFail{Count: n}, nil
}
