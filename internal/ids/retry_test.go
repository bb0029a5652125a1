package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noJitter disables jitter for assertions that need exact delays.
func noJitter() float64 { return 1.0 }

func TestExponentialBackoffDoublesUpToMaxDelay(t *testing.T) {
	maxDelay := NewDuration(1 * time.Second)
	policy := RetryPolicy{Exponential: &ExponentialRetry{
		Count:    2,
		Delay:    NewDuration(100 * time.Millisecond),
		Jitter:   false,
		MaxDelay: &maxDelay,
	}}

	delays := policy.Backoff(noJitter)
	require.Len(t, delays, 2)
	assert.Equal(t, 100*time.Millisecond, delays[0])
	assert.Equal(t, 200*time.Millisecond, delays[1])
}

func TestExponentialBackoffNeverExceedsMaxDelay(t *testing.T) {
	maxDelay := NewDuration(500 * time.Millisecond)
	policy := RetryPolicy{Exponential: &ExponentialRetry{
		Count:    10,
		Delay:    NewDuration(100 * time.Millisecond),
		MaxDelay: &maxDelay,
	}}

	for _, d := range policy.Backoff(noJitter) {
		assert.LessOrEqual(t, d, 500*time.Millisecond)
	}
}

func TestFixedBackoffConstantDelay(t *testing.T) {
	policy := RetryPolicy{Fixed: &FixedRetry{Count: 3, Delay: NewDuration(50 * time.Millisecond)}}

	delays := policy.Backoff(noJitter)
	require.Len(t, delays, 3)
	for _, d := range delays {
		assert.Equal(t, 50*time.Millisecond, d)
	}
}

func TestJitterStaysWithinHalfOpenWindow(t *testing.T) {
	policy := RetryPolicy{Fixed: &FixedRetry{Count: 20, Delay: NewDuration(100 * time.Millisecond), Jitter: true}}

	for _, d := range policy.Backoff(nil) {
		assert.Greater(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestAttemptsIsOnePlusRetryCount(t *testing.T) {
	assert.Equal(t, 1, NoRetries.Attempts())
	assert.Equal(t, 3, RetryPolicy{Fixed: &FixedRetry{Count: 2}}.Attempts())
	assert.Equal(t, 4, RetryPolicy{Exponential: &ExponentialRetry{Count: 3}}.Attempts())
}

func TestScriptIDToolNamespace(t *testing.T) {
	id := ScriptID("@tool:cargo-nextest:coverage")
	name, ok := id.ToolName()
	require.True(t, ok)
	assert.Equal(t, "cargo-nextest", name)

	require.NoError(t, ValidateToolScriptID(id, "cargo-nextest"))
	assert.Error(t, ValidateToolScriptID(id, "other-tool"))
	assert.Error(t, ValidateRepoScriptID(id))
	assert.NoError(t, ValidateRepoScriptID(ScriptID("my-setup")))
}

func TestAttemptIDString(t *testing.T) {
	idx := 2
	a := AttemptID{RunID: "r1", Binary: "crate::lib", Test: "mod::test_foo", StressIdx: &idx, Attempt: 1}
	assert.Equal(t, "r1:crate::lib:mod::test_foo@stress-2#1", a.String())
}
