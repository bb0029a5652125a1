package ids

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so it can be written in TOML configs as a
// human string ("30s", "1m", "500ms") rather than an integer nanosecond
// count.
type Duration struct {
	time.Duration
}

// NewDuration wraps d.
func NewDuration(d time.Duration) Duration { return Duration{Duration: d} }

// UnmarshalText implements encoding.TextUnmarshaler, used by
// github.com/pelletier/go-toml/v2 for any field it cannot map directly to
// a TOML primitive.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// OnTimeoutAction is the behavior configured for a slow-timeout that
// terminates a test ("on-timeout").
type OnTimeoutAction string

const (
	// OnTimeoutFail marks the run as Timeout{Fail}.
	OnTimeoutFail OnTimeoutAction = "fail"
	// OnTimeoutPass marks the run as Timeout{Pass}, used for tests that are
	// expected to be killed (e.g. long-running fuzz harnesses under a
	// wall-clock budget).
	OnTimeoutPass OnTimeoutAction = "pass"
)

// LeakResult is the outcome a leaked-fd test is mapped to once its grace
// window expires without the descriptors closing ("leak-timeout
// {period, result}").
type LeakResult string

const (
	LeakResultPass LeakResult = "pass"
	LeakResultFail LeakResult = "fail"
)

// SlowTimeout configures the periodic "still running" detector and, if
// terminate-after is set, a hard kill ( S2).
type SlowTimeout struct {
	Period Duration `toml:"period"`
	TerminateAfter *int `toml:"terminate-after,omitempty"`
	GracePeriod Duration `toml:"grace-period"`
	OnTimeout OnTimeoutAction `toml:"on-timeout"`
}

// LeakTimeout configures file-descriptor leak detection.
type LeakTimeout struct {
	Period Duration `toml:"period"`
	Result LeakResult `toml:"result"`
}
