package record

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateNoopWhenWithinBudget(t *testing.T) {
	data := []byte("hello world")
	out, orig := Truncate(data, 1024)
	assert.Equal(t, data, out)
	assert.Equal(t, len(data), orig)
}

func TestTruncateSplitsHeadAndTail(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 1000)
	out, orig := Truncate(data, 100)
	assert.Equal(t, 1000, orig)
	assert.LessOrEqual(t, len(out), 100)
	assert.Contains(t, string(out), "truncated")
}

func TestTruncateMarkerAloneWhenBudgetTooSmall(t *testing.T) {
	data := bytes.Repeat([]byte("y"), 1000)
	out, orig := Truncate(data, 5)
	assert.Equal(t, 1000, orig)
	assert.Contains(t, string(out), "truncated")
	assert.Greater(t, len(out), 5, "the marker itself may exceed the requested budget; correctness wins")
}
