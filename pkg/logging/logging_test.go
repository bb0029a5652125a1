package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
		Level(99):  "UNKNOWN",
	}
	for level, want := range cases {
		assert.Equal(t, want, level.String())
	}
}

func TestInfoWritesSubsystemAndMessage(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)
	defer Init(LevelInfo, nil)

	Info("dispatch", "scheduled %d tests", 3)

	out := buf.String()
	assert.True(t, strings.Contains(out, "scheduled 3 tests"))
	assert.True(t, strings.Contains(out, `"subsystem":"dispatch"`))
}

func TestErrorAttachesErrorField(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)
	defer Init(LevelInfo, nil)

	Error("supervisor", errors.New("boom"), "child exited")

	assert.True(t, strings.Contains(buf.String(), `"error":"boom"`))
}

func TestDebugSuppressedAboveConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)
	defer Init(LevelInfo, nil)

	Debug("config", "verbose trace")
	Info("config", "still suppressed")

	assert.Empty(t, buf.String())
}
