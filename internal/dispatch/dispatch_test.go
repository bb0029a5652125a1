package dispatch

import (
	"context"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xtr/internal/config"
	"xtr/internal/ids"
	"xtr/internal/queue"
	"xtr/internal/report"
	"xtr/internal/supervisor"
)

type fakeReporter struct {
	mu      sync.Mutex
	events  []report.Event
	started []string
	summary *report.RunSummary
}

func (f *fakeReporter) StartRun(runID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, runID)
}

func (f *fakeReporter) Event(ev report.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeReporter) FinishRun(summary report.RunSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := summary
	f.summary = &s
}

func (f *fakeReporter) count(kind report.EventKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func basicSettings() config.Settings {
	return config.Settings{
		SlowTimeout: ids.SlowTimeout{Period: ids.NewDuration(time.Hour), GracePeriod: ids.NewDuration(time.Second), OnTimeout: ids.OnTimeoutFail},
		LeakTimeout: ids.LeakTimeout{Period: ids.NewDuration(20 * time.Millisecond), Result: ids.LeakResultFail},
		Group:       ids.GlobalGroup,
	}
}

func shellSpawn(script string) SpawnFunc {
	return func(p *queue.Packet, settings config.Settings, attempt ids.AttemptID) supervisor.Options {
		return supervisor.Options{
			Command:     []string{"/bin/sh", "-c", script},
			SlowTimeout: settings.SlowTimeout,
			LeakTimeout: settings.LeakTimeout,
		}
	}
}

func TestDispatcherRunAllPassSucceeds(t *testing.T) {
	reporter := &fakeReporter{}
	d := New(2, nil, reporter, shellSpawn("exit 0"))

	packets := []*queue.Packet{
		queue.NewPacket("r1", "crate::lib", "a", ids.GlobalGroup, 1, ids.NoRetries),
		queue.NewPacket("r1", "crate::lib", "b", ids.GlobalGroup, 1, ids.NoRetries),
	}

	err := d.Run(context.Background(), "r1", packets, func(*queue.Packet) config.Settings { return basicSettings() })
	require.NoError(t, err)
	require.NotNil(t, reporter.summary)
	assert.Equal(t, 2, reporter.summary.Passed)
	assert.Equal(t, 0, reporter.summary.Failed)
	assert.Equal(t, 2, reporter.count(report.EventTestFinished))
}

func TestDispatcherRunAllReturnsTestsFailedError(t *testing.T) {
	reporter := &fakeReporter{}
	d := New(2, nil, reporter, shellSpawn("exit 1"))

	packets := []*queue.Packet{
		queue.NewPacket("r1", "crate::lib", "a", ids.GlobalGroup, 1, ids.NoRetries),
	}

	err := d.Run(context.Background(), "r1", packets, func(*queue.Packet) config.Settings { return basicSettings() })
	require.Error(t, err)
	var failed *TestsFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 1, failed.FailedCount)
}

func TestDispatcherNoTestsRunError(t *testing.T) {
	reporter := &fakeReporter{}
	d := New(2, nil, reporter, shellSpawn("exit 0"))

	err := d.Run(context.Background(), "r1", nil, func(*queue.Packet) config.Settings { return basicSettings() })
	require.Error(t, err)
	var noTests *NoTestsRunError
	require.ErrorAs(t, err, &noTests)
}

func TestDispatcherRetriesFailingAttemptThenPasses(t *testing.T) {
	reporter := &fakeReporter{}
	marker := t.TempDir() + "/retry-marker"
	// Fails once (marker file absent) then passes on the second attempt.
	script := `
if [ -f "` + marker + `" ]; then
  exit 0
else
  touch "` + marker + `"
  exit 1
fi`
	d := New(1, nil, reporter, shellSpawn(script))
	policy := ids.RetryPolicy{Fixed: &ids.FixedRetry{Count: 1, Delay: ids.NewDuration(5 * time.Millisecond)}}
	packets := []*queue.Packet{queue.NewPacket("r1", "crate::lib", "retry_me", ids.GlobalGroup, 1, policy)}

	err := d.Run(context.Background(), "r1", packets, func(*queue.Packet) config.Settings { return basicSettings() })
	require.NoError(t, err)
	assert.Equal(t, 1, reporter.count(report.EventAttemptFailedWillRetry))
	assert.Equal(t, 1, reporter.count(report.EventRetryStarted))
}

func TestStressOutcomeAnyFailIsFail(t *testing.T) {
	var s StressOutcome
	s.Record(true)
	s.Record(true)
	assert.True(t, s.Passed())
	s.Record(false)
	assert.False(t, s.Passed())
	s.Record(true)
	assert.False(t, s.Passed(), "a later pass must not un-fail the accumulated outcome")
	assert.Equal(t, 4, s.Iterations())
}

func TestSleepInterruptiblePausesCountdown(t *testing.T) {
	reporter := &fakeReporter{}
	d := New(1, nil, reporter, shellSpawn("exit 0"))

	d.setPaused(true)
	done := make(chan bool, 1)
	go func() {
		done <- d.sleepInterruptible(context.Background(), 50*time.Millisecond)
	}()

	select {
	case <-done:
		t.Fatal("sleepInterruptible returned while paused, despite a delay well short of the wait below")
	case <-time.After(150 * time.Millisecond):
	}

	d.setPaused(false)
	select {
	case passed := <-done:
		assert.True(t, passed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("sleepInterruptible did not resume after unpausing")
	}
}

func TestSleepInterruptibleCancelledWhilePausedStillStops(t *testing.T) {
	reporter := &fakeReporter{}
	d := New(1, nil, reporter, shellSpawn("exit 0"))

	d.setPaused(true)
	done := make(chan bool, 1)
	go func() {
		done <- d.sleepInterruptible(context.Background(), 50*time.Millisecond)
	}()

	time.Sleep(20 * time.Millisecond)
	d.Cancel(ReasonSignal)

	select {
	case passed := <-done:
		assert.False(t, passed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("sleepInterruptible did not react to a cancel while paused")
	}
}

func TestWatchSignalsStopSetsPausedAndContinueClearsIt(t *testing.T) {
	reporter := &fakeReporter{}
	d := New(1, nil, reporter, shellSpawn("exit 0"))

	sigCh := make(chan os.Signal, 2)
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.watchSignals(sigCh, cancel)

	sigCh <- syscall.SIGTSTP
	require.Eventually(t, d.isPaused, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, reporter.count(report.EventRunPaused))

	sigCh <- syscall.SIGCONT
	require.Eventually(t, func() bool { return !d.isPaused() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, reporter.count(report.EventRunContinued))

	close(sigCh)
}

func TestCancelReasonOnlyEscalates(t *testing.T) {
	reporter := &fakeReporter{}
	d := New(1, nil, reporter, shellSpawn("exit 0"))
	d.Cancel(ReasonSignal)
	assert.Equal(t, ReasonSignal, d.reason())
	d.Cancel(ReasonTestFailure)
	assert.Equal(t, ReasonSignal, d.reason(), "lower-severity cancel must not override a higher one")
	d.Cancel(ReasonInterrupt)
	assert.Equal(t, ReasonInterrupt, d.reason())
}
