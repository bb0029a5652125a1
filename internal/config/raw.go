package config

import "xtr/internal/ids"

// The raw* types mirror the on-disk TOML shape exactly, before any
// cross-referencing (script/group name resolution, platform/filter
// compilation, inheritance merge) happens. They exist so that
// github.com/pelletier/go-toml/v2 has a direct, tag-driven target to
// unmarshal into; compile.go then walks them into the typed Profile /
// Override / ScriptConfig values the rest of the package uses.
type rawConfig struct {
	Profile map[string]rawProfile `toml:"profile"`
	TestGroups map[string]rawGroup `toml:"test-groups"`
	Scripts []rawScript `toml:"scripts"`
	Experimental []string `toml:"experimental"`

	// taggedScripts and taggedGroups are populated by applyRawConfig, not
	// by TOML decoding, so later compile steps know which Source declared
	// each one (needed for tool-namespace validation).
	taggedScripts []taggedScript
	taggedGroups []taggedGroup
}

type taggedScript struct {
	script rawScript
	source Source
}

type taggedGroup struct {
	name string
	group rawGroup
	source Source
}

type rawProfile struct {
	Extends string `toml:"extends,omitempty"`

	DefaultFilter string `toml:"default-filter,omitempty"`
	TestThreads *int `toml:"test-threads,omitempty"`
	ThreadsRequired *int `toml:"threads-required,omitempty"`
	Retries *rawRetry `toml:"retries,omitempty"`
	SlowTimeout *rawSlowTimeout `toml:"slow-timeout,omitempty"`
	Bench *rawBenchSettings `toml:"bench,omitempty"`
	LeakTimeout *rawLeakTimeout `toml:"leak-timeout,omitempty"`
	FailureOutput string `toml:"failure-output,omitempty"`
	SuccessOutput string `toml:"success-output,omitempty"`
	Junit *JunitSettings `toml:"junit,omitempty"`
	StatusLevel string `toml:"status-level,omitempty"`
	FinalStatusLevel string `toml:"final-status-level,omitempty"`
	MaxFail string `toml:"max-fail,omitempty"`
	RunExtraArgs []string `toml:"run-extra-args,omitempty"`
	Archive *ArchiveSettings `toml:"archive,omitempty"`
	Group string `toml:"group,omitempty"`
	WrapperScript string `toml:"wrapper-script,omitempty"`

	Overrides []rawOverride `toml:"overrides,omitempty"`
}

type rawOverride struct {
	Platform string `toml:"platform,omitempty"`
	Filter string `toml:"filter,omitempty"`
	DefaultFilter string `toml:"default-filter,omitempty"`

	TestThreads *int `toml:"test-threads,omitempty"`
	ThreadsRequired *int `toml:"threads-required,omitempty"`
	Retries *rawRetry `toml:"retries,omitempty"`
	SlowTimeout *rawSlowTimeout `toml:"slow-timeout,omitempty"`
	Bench *rawBenchSettings `toml:"bench,omitempty"`
	LeakTimeout *rawLeakTimeout `toml:"leak-timeout,omitempty"`
	FailureOutput string `toml:"failure-output,omitempty"`
	SuccessOutput string `toml:"success-output,omitempty"`
	StatusLevel string `toml:"status-level,omitempty"`
	FinalStatusLevel string `toml:"final-status-level,omitempty"`
	MaxFail string `toml:"max-fail,omitempty"`
	Group string `toml:"group,omitempty"`
	WrapperScript string `toml:"wrapper-script,omitempty"`
}

type rawRetry struct {
	Backoff string `toml:"backoff,omitempty"` // "fixed" | "exponential"
	Count int `toml:"count,omitempty"`
	Delay ids.Duration `toml:"delay,omitempty"`
	Jitter bool `toml:"jitter,omitempty"`
	MaxDelay *ids.Duration `toml:"max-delay,omitempty"`
}

type rawSlowTimeout struct {
	Period ids.Duration `toml:"period"`
	TerminateAfter *int `toml:"terminate-after,omitempty"`
	GracePeriod ids.Duration `toml:"grace-period"`
	OnTimeout ids.OnTimeoutAction `toml:"on-timeout,omitempty"`
}

// rawBenchSettings is the `[profile.<name>.bench]` subtable. Only
// slow-timeout is bench-specific today, and it never falls back to the
// plain slow-timeout.
type rawBenchSettings struct {
	SlowTimeout *rawSlowTimeout `toml:"slow-timeout,omitempty"`
}

type rawLeakTimeout struct {
	Period ids.Duration `toml:"period"`
	Result ids.LeakResult `toml:"result,omitempty"`
}

type rawGroup struct {
	MaxThreads int `toml:"max-threads"`
}

type rawScript struct {
	ID string `toml:"id"`
	Kind string `toml:"kind"` // "setup" | "wrapper"
	Command []string `toml:"command"`

	SlowTimeout *rawSlowTimeout `toml:"slow-timeout,omitempty"`
	LeakTimeout *rawLeakTimeout `toml:"leak-timeout,omitempty"`
	Junit *JunitSettings `toml:"junit,omitempty"`
}
