package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xtr/internal/ids"
)

func noTimeouts() (ids.SlowTimeout, ids.LeakTimeout) {
	return ids.SlowTimeout{
			Period:      ids.NewDuration(time.Hour),
			GracePeriod: ids.NewDuration(time.Second),
			OnTimeout:   ids.OnTimeoutFail,
		}, ids.LeakTimeout{
			Period: ids.NewDuration(50 * time.Millisecond),
			Result: ids.LeakResultFail,
		}
}

func TestSupervisorRunPassSimpleCommand(t *testing.T) {
	slow, leak := noTimeouts()
	s, err := Spawn(Options{Command: []string{"/bin/sh", "-c", "exit 0"}, SlowTimeout: slow, LeakTimeout: leak})
	require.NoError(t, err)

	res := s.Run(context.Background())
	assert.Equal(t, ResultPass, res.Kind)
}

func TestSupervisorRunFailNonZeroExit(t *testing.T) {
	slow, leak := noTimeouts()
	s, err := Spawn(Options{Command: []string{"/bin/sh", "-c", "exit 3"}, SlowTimeout: slow, LeakTimeout: leak})
	require.NoError(t, err)

	res := s.Run(context.Background())
	require.Equal(t, ResultFail, res.Kind)
	require.NotNil(t, res.Failure.ExitCode)
	assert.Equal(t, 3, *res.Failure.ExitCode)
}

func TestSupervisorCapturesStdoutAndStderr(t *testing.T) {
	slow, leak := noTimeouts()
	s, err := Spawn(Options{
		Command:     []string{"/bin/sh", "-c", "echo out; echo err 1>&2"},
		SlowTimeout: slow, LeakTimeout: leak,
	})
	require.NoError(t, err)

	res := s.Run(context.Background())
	assert.Equal(t, ResultPass, res.Kind)
	assert.Equal(t, "out\n", string(s.Stdout()))
	assert.Equal(t, "err\n", string(s.Stderr()))
}

func TestSupervisorSlowTimeoutTerminatesAfterHitCount(t *testing.T) {
	slow := ids.SlowTimeout{
		Period:         ids.NewDuration(20 * time.Millisecond),
		TerminateAfter: intPtr(1),
		GracePeriod:    ids.NewDuration(50 * time.Millisecond),
		OnTimeout:      ids.OnTimeoutFail,
	}
	leak := ids.LeakTimeout{Period: ids.NewDuration(50 * time.Millisecond), Result: ids.LeakResultFail}

	s, err := Spawn(Options{Command: []string{"/bin/sh", "-c", "sleep 10"}, SlowTimeout: slow, LeakTimeout: leak})
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() { done <- s.Run(context.Background()) }()

	// GracePeriod is non-zero, so the slow tick reports Slow before the
	// terminate-after count triggers Terminating.
	select {
	case ev := <-s.Events():
		assert.Equal(t, EventSlow, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a Slow event")
	}

	select {
	case ev := <-s.Events():
		assert.Equal(t, EventTerminating, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a Terminating event")
	}

	select {
	case res := <-done:
		require.Equal(t, ResultTimeout, res.Kind)
		assert.Equal(t, ids.LeakResultFail, res.PassFail)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not terminate the slow child in time")
	}
}

func TestSupervisorShutdownRequestTerminatesChild(t *testing.T) {
	slow, leak := noTimeouts()
	s, err := Spawn(Options{Command: []string{"/bin/sh", "-c", "sleep 10"}, SlowTimeout: slow, LeakTimeout: leak})
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() { done <- s.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	s.Requests() <- Request{Kind: ReqShutdown, Signal: DefaultSoftSignal}

	select {
	case res := <-done:
		require.Equal(t, ResultFail, res.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not honor Shutdown request")
	}
}

func TestSupervisorQueryReturnsSnapshot(t *testing.T) {
	slow, leak := noTimeouts()
	s, err := Spawn(Options{Command: []string{"/bin/sh", "-c", "echo hi; sleep 10"}, SlowTimeout: slow, LeakTimeout: leak})
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() { done <- s.Run(context.Background()) }()
	defer func() {
		s.Requests() <- Request{Kind: ReqShutdown, Signal: DefaultSoftSignal}
		<-done
	}()

	time.Sleep(30 * time.Millisecond)
	reply := make(chan Snapshot, 1)
	s.Requests() <- Request{Kind: ReqQuery, Reply: reply}

	select {
	case snap := <-reply:
		assert.Contains(t, string(snap.Stdout), "hi")
	case <-time.After(time.Second):
		t.Fatal("query was not answered")
	}
}

func intPtr(i int) *int { return &i }
