package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xtr/internal/ids"
)

func TestPacketRetryLoopS1Scenario(t *testing.T) {
	// : Exponential{count=2, delay=100ms, max-delay=1s},
	// expected delays 100ms, 200ms, pass on third attempt.
	maxDelay := ids.NewDuration(1 * time.Second)
	policy := ids.RetryPolicy{Exponential: &ids.ExponentialRetry{
		Count: 2, Delay: ids.NewDuration(100 * time.Millisecond), MaxDelay: &maxDelay,
	}}

	p := NewPacket("r1", "crate::lib", "test_foo", ids.GlobalGroup, 1, policy)
	assert.Equal(t, 1, p.Attempt())
	assert.Equal(t, 3, p.TotalAttempts())
	require.True(t, p.HasMoreAttempts())

	assert.Equal(t, 100*time.Millisecond, p.NextDelay())
	assert.Equal(t, 2, p.Attempt())
	require.True(t, p.HasMoreAttempts())

	assert.Equal(t, 200*time.Millisecond, p.NextDelay())
	assert.Equal(t, 3, p.Attempt())
	assert.False(t, p.HasMoreAttempts())
}

func TestPacketNextDelayPanicsWhenExhausted(t *testing.T) {
	p := NewPacket("r1", "crate::lib", "t", ids.GlobalGroup, 1, ids.NoRetries)
	assert.False(t, p.HasMoreAttempts())
	assert.Panics(t, func() { p.NextDelay() })
}

func TestPacketAttemptIDReflectsCurrentAttempt(t *testing.T) {
	p := NewPacket("r1", "crate::lib", "test_foo", ids.GlobalGroup, 1, ids.RetryPolicy{
		Fixed: &ids.FixedRetry{Count: 1, Delay: ids.NewDuration(10 * time.Millisecond)},
	})
	assert.Equal(t, ids.AttemptID{RunID: "r1", Binary: "crate::lib", Test: "test_foo", Attempt: 1}, p.AttemptID())
	p.NextDelay()
	assert.Equal(t, ids.AttemptID{RunID: "r1", Binary: "crate::lib", Test: "test_foo", Attempt: 2}, p.AttemptID())
}

func TestPacketWithStressIndexAppearsInAttemptID(t *testing.T) {
	p := NewPacket("r1", "crate::lib", "test_foo", ids.GlobalGroup, 1, ids.NoRetries).WithStressIndex(3)
	assert.Equal(t, "r1:crate::lib:test_foo@stress-3#1", p.AttemptID().String())
}
