package config

// embeddedDefaultTOML is the tool's built-in default profile: the single
// source of defaults must be complete, since missing keys there are a
// logic error. User and tool files only ever need to specify deltas
// against this.
const embeddedDefaultTOML = `
[profile.default]
test-threads = 0
threads-required = 1
failure-output = "immediate"
success-output = "never"
status-level = "pass"
final-status-level = "fail"
max-fail = "none"

[profile.default.retries]
backoff = "fixed"
count = 0

[profile.default.slow-timeout]
period = "60s"
grace-period = "10s"
on-timeout = "fail"

[profile.default.leak-timeout]
period = "100ms"
result = "pass"

[profile.default.junit]
store-success-output = false
store-failure-output = true

[profile.default.archive]
max-output-size = 1048576
include-stdout = true
include-stderr = true
`

// Source identifies where a parsed config table came from, ordered from
// lowest to highest priority ("User files are higher-priority
// than tool files than the embedded default").
type Source struct {
	Path string
	Kind SourceKind
	// Tool names the downstream tool that authored this file; only
	// meaningful when Kind == SourceTool, and required in that case so
	// script/group namespace validation () can check
	// the "@tool:<tool>:" prefix against the right tool.
	Tool string
}

// SourceKind tags a Source's priority tier.
type SourceKind int

const (
	// SourceEmbedded is the built-in default; always present, always
	// lowest priority.
	SourceEmbedded SourceKind = iota
	// SourceTool is a downstream tool's config file.
	SourceTool
	// SourceUser is the repo's own config file; highest priority.
	SourceUser
)
