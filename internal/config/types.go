package config

import (
	"xtr/internal/ids"
)

// TestOutputDisplay controls when a unit's captured output is shown
// ("failure-output"/"success-output").
type TestOutputDisplay string

const (
	DisplayNever TestOutputDisplay = "never"
	DisplayImmediate TestOutputDisplay = "immediate"
	DisplayFinal TestOutputDisplay = "final"
	DisplayImmediateFinal TestOutputDisplay = "immediate-final"
)

// StatusLevel controls which events are surfaced to the reporter.
type StatusLevel string

const (
	StatusLevelNone StatusLevel = "none"
	StatusLevelFail StatusLevel = "fail"
	StatusLevelPass StatusLevel = "pass"
	StatusLevelAll StatusLevel = "all"
)

// MaxFail is either a count or "all" (fail-fast disabled).
type MaxFail struct {
	All bool
	Count int
}

// JunitSettings holds the junit.* settings-delta keys.
type JunitSettings struct {
	StoreSuccessOutput *bool `toml:"store-success-output,omitempty"`
	StoreFailureOutput *bool `toml:"store-failure-output,omitempty"`
}

// SettingsDelta is a sparse overlay over a profile's resolved Settings:
// every field is a pointer (or nil slice/string) so that "absent" is
// distinguishable from "set to the zero value", so merging two deltas can
// apply a "the first encountered Some(value) wins" rule.
type SettingsDelta struct {
	DefaultFilter *ids.FilterExpr
	TestThreads *int
	ThreadsRequired *int
	Retries *ids.RetryPolicy
	SlowTimeout *ids.SlowTimeout
	BenchSlowTimeout *ids.SlowTimeout
	LeakTimeout *ids.LeakTimeout
	FailureOutput *TestOutputDisplay
	SuccessOutput *TestOutputDisplay
	Junit *JunitSettings
	StatusLevel *StatusLevel
	FinalStatusLevel *StatusLevel
	MaxFail *MaxFail
	RunExtraArgs []string
	Archive *ArchiveSettings
	Group *ids.GroupID
	WrapperScript *ids.ScriptID
}

// ArchiveSettings controls the record-opts applied when a run's output is
// persisted by the recorder.
type ArchiveSettings struct {
	MaxOutputSize int64 `toml:"max-output-size"`
	IncludeStdout bool `toml:"include-stdout"`
	IncludeStderr bool `toml:"include-stderr"`
}

// Settings is a fully resolved (non-sparse) settings block: the output of
// the settings-for-test algorithm, and also the shape of a profile's own
// defaults before overrides are layered on.
type Settings struct {
	DefaultFilter *ids.FilterExpr
	TestThreads int
	ThreadsRequired int
	Retries ids.RetryPolicy
	SlowTimeout ids.SlowTimeout
	BenchSlowTimeout ids.SlowTimeout
	LeakTimeout ids.LeakTimeout
	FailureOutput TestOutputDisplay
	SuccessOutput TestOutputDisplay
	Junit JunitSettings
	StatusLevel StatusLevel
	FinalStatusLevel StatusLevel
	MaxFail MaxFail
	RunExtraArgs []string
	Archive ArchiveSettings
	Group ids.GroupID
	WrapperScript ids.ScriptID
}

// Override is one `[[profile.overrides]]` entry ("Override").
type Override struct {
	Platform *ids.PlatformExpr
	Filter *ids.FilterExpr
	IsDefaultFilter bool // true if Filter targets the default-filter delta, not the filter delta
	Settings SettingsDelta

	// computed by ApplyBuildPlatforms; unknown-result evaluations are
	// treated as true ("conservative include").
	hostEval bool
	hostTestEval bool
	targetEval bool
}

// TestGroupConfig is one named test group's configuration.
type TestGroupConfig struct {
	ID ids.GroupID
	MaxThreads int
}

// ScriptKind distinguishes setup scripts (produce an env map, run before
// tests) from wrapper scripts (prepended to a test invocation).
type ScriptKind string

const (
	ScriptKindSetup ScriptKind = "setup"
	ScriptKindWrapper ScriptKind = "wrapper"
)

// ScriptConfig is one `[[scripts]]` block ("Script config").
type ScriptConfig struct {
	ID ids.ScriptID
	Kind ScriptKind
	Command []string

	SlowTimeout ids.SlowTimeout
	LeakTimeout ids.LeakTimeout
	Junit JunitSettings

	// DeclOrder is this script's position across every layered source
	// file, in the order files were applied and scripts declared within
	// each file. Scripts run strictly in declaration order, so callers
	// must sort cfg.Scripts by this field rather than by ID.
	DeclOrder int
}

// Profile is a named bundle of default settings plus an ordered list of
// overrides, optionally inheriting from another profile.
type Profile struct {
	Name string
	Extends string // empty if this profile does not inherit
	Defaults SettingsDelta
	Overrides []*Override
}

// NextestConfig is the fully-compiled result of loading and compiling
// every layered source file ("Contract").
type NextestConfig struct {
	Profiles map[string]*Profile
	TestGroups map[ids.GroupID]TestGroupConfig
	Scripts map[ids.ScriptID]*ScriptConfig
	// ExperimentalFeatures enabled for this compile, keyed by name.
	ExperimentalFeatures map[string]bool
}
