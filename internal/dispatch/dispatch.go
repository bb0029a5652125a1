// Package dispatch is the scheduling core: one dispatcher coordinating a
// bounded pool of per-test supervisors, enforcing global and per-group
// concurrency caps, retrying failing attempts with backoff, and routing
// OS signals and cancels. It depends only on internal/report's Reporter
// interface, never a concrete renderer.
package dispatch

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"xtr/internal/config"
	"xtr/internal/ids"
	"xtr/internal/queue"
	"xtr/internal/report"
	"xtr/internal/supervisor"
	"xtr/pkg/logging"
)

const subsystem = "dispatch"

// SpawnFunc builds the supervisor.Options for one attempt of a packet,
// given its resolved settings — the caller (cmd/run.go) owns translating
// a config.Settings + ids.AttemptID into an actual command line (wrapper
// script prepended, env vars for NEXTEST_*, slot numbers,...).
type SpawnFunc func(p *queue.Packet, settings config.Settings, attempt ids.AttemptID) supervisor.Options

// Dispatcher schedules and runs a batch of queue.Packet. It is single-use:
// construct one per run.
type Dispatcher struct {
	global *semaphore.Weighted
	groups map[ids.GroupID]*semaphore.Weighted

	reporter report.Reporter
	spawn SpawnFunc

	mu sync.Mutex
	cancelReason CancelReason
	paused bool
	live map[*supervisor.Supervisor]struct{}
}

// New builds a Dispatcher. groupConfigs maps a custom test group to its
// max-threads cap; the implicit global group (ids.GlobalGroup) is not
// included in groupConfigs and has no secondary cap beyond the global
// semaphore.
func New(testThreads int, groupConfigs map[ids.GroupID]config.TestGroupConfig, reporter report.Reporter, spawn SpawnFunc) *Dispatcher {
	groups := make(map[ids.GroupID]*semaphore.Weighted, len(groupConfigs))
	for id, gc := range groupConfigs {
		groups[id] = semaphore.NewWeighted(int64(gc.MaxThreads))
	}
	return &Dispatcher{
		global: semaphore.NewWeighted(int64(resolveThreads(testThreads))),
		groups: groups,
		reporter: reporter,
		spawn: spawn,
		live: make(map[*supervisor.Supervisor]struct{}),
	}
}

// Cancel escalates the dispatcher's cancel reason and broadcasts Shutdown
// to every live supervisor. Lower-severity cancels after a higher one has
// already landed are ignored.
func (d *Dispatcher) Cancel(reason CancelReason) {
	d.mu.Lock()
	if reason <= d.cancelReason {
		d.mu.Unlock()
		return
	}
	d.cancelReason = reason
	live := make([]*supervisor.Supervisor, 0, len(d.live))
	for sup := range d.live {
		live = append(live, sup)
	}
	d.mu.Unlock()

	for _, sup := range live {
		sup.Requests() <- supervisor.Request{Kind: supervisor.ReqShutdown, Signal: supervisor.DefaultSoftSignal}
	}
}

func (d *Dispatcher) cancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelReason != ReasonNone
}

func (d *Dispatcher) reason() CancelReason {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelReason
}

// setPaused records the dispatcher-wide pause state set by a Stop/Continue
// signal. It affects only the retry-delay stopwatch; an attempt already
// running is paused independently, by the supervisor's own ReqStop/ReqContinue
// handling.
func (d *Dispatcher) setPaused(paused bool) {
	d.mu.Lock()
	d.paused = paused
	d.mu.Unlock()
}

func (d *Dispatcher) isPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *Dispatcher) register(sup *supervisor.Supervisor) {
	d.mu.Lock()
	d.live[sup] = struct{}{}
	d.mu.Unlock()
}

func (d *Dispatcher) unregister(sup *supervisor.Supervisor) {
	d.mu.Lock()
	delete(d.live, sup)
	d.mu.Unlock()
}

func (d *Dispatcher) broadcast(req supervisor.Request) {
	d.mu.Lock()
	live := make([]*supervisor.Supervisor, 0, len(d.live))
	for sup := range d.live {
		live = append(live, sup)
	}
	d.mu.Unlock()
	for _, sup := range live {
		sup.Requests() <- req
	}
}

// Run schedules setup-script-independent test packets (setup scripts are
// the caller's responsibility, run to completion before Run is called —
// "ordering guarantees") and blocks until every one has
// finished, retried out, or been cancelled.
func (d *Dispatcher) Run(ctx context.Context, runID string, packets []*queue.Packet, settingsFor func(*queue.Packet) config.Settings) error {
	d.reporter.StartRun(runID)

	ctx, cancelCtx := context.WithCancel(ctx)
	defer cancelCtx()

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, watchedSignals()...)
	defer signal.Stop(sigCh)
	go d.watchSignals(sigCh, cancelCtx)

	var wg sync.WaitGroup
	var ran, failed int64

	for _, p := range packets {
		if d.cancelled() {
			break
		}
		settings := settingsFor(p)
		if err := d.global.Acquire(ctx, int64(p.ThreadsRequired)); err != nil {
			break
		}
		var groupSem *semaphore.Weighted
		if !settings.Group.IsGlobal() {
			groupSem = d.groups[settings.Group]
			if groupSem != nil {
				if err := groupSem.Acquire(ctx, 1); err != nil {
					d.global.Release(int64(p.ThreadsRequired))
					break
				}
			}
		}

		atomic.AddInt64(&ran, 1)
		wg.Add(1)
		go func(p *queue.Packet, settings config.Settings, groupSem *semaphore.Weighted) {
			defer wg.Done()
			defer d.global.Release(int64(p.ThreadsRequired))
			if groupSem != nil {
				defer groupSem.Release(1)
			}
			if !d.runWithRetries(ctx, p, settings) {
				atomic.AddInt64(&failed, 1)
			}
		}(p, settings, groupSem)
	}
	wg.Wait()

	cancelled := d.cancelled()
	if cancelled {
		d.reporter.Event(report.Event{Kind: report.EventRunBeginCancel, RunID: runID})
	}
	d.reporter.Event(report.Event{Kind: report.EventRunFinished, RunID: runID})
	d.reporter.FinishRun(report.RunSummary{
		Passed: int(ran) - int(failed),
		Failed: int(failed),
		Cancelled: cancelled,
	})

	switch {
	case cancelled:
		return &CancelledError{Reason: d.reason()}
	case ran == 0:
		return &NoTestsRunError{}
	case failed > 0:
		return &TestsFailedError{FailedCount: int(failed)}
	}
	return nil
}

// runWithRetries drives one packet through its retry loop, returning true
// if the final attempt passed.
func (d *Dispatcher) runWithRetries(ctx context.Context, p *queue.Packet, settings config.Settings) bool {
	for {
		attemptID := p.AttemptID()
		d.reporter.Event(report.Event{Kind: report.EventTestStarted, RunID: p.RunID, AttemptID: attemptID})

		opts := d.spawn(p, settings, attemptID)
		sup, err := supervisor.Spawn(opts)
		if err != nil {
			logging.Warn(subsystem, "spawn failed for %s: %v", attemptID, err)
			d.reporter.Event(report.Event{
				Kind: report.EventTestFinished, RunID: p.RunID, AttemptID: attemptID,
				Outcome: report.Outcome{Kind: "exec-fail", Details: err.Error()},
			})
			return false
		}

		d.register(sup)
		quit := make(chan struct{})
		go d.forwardSupervisorEvents(sup, p.RunID, attemptID, quit)
		result := sup.Run(ctx)
		d.unregister(sup)
		close(quit)

		passed := outcomePassed(result)
		d.reporter.Event(report.Event{
			Kind: report.EventTestFinished, RunID: p.RunID, AttemptID: attemptID,
			Outcome: report.Outcome{
				Kind: result.Kind.String(), Passed: passed, Leaked: result.Leaked,
				Stdout: sup.Stdout(), Stderr: sup.Stderr(),
			},
		})
		if passed {
			return true
		}

		if !p.HasMoreAttempts() || d.cancelled() {
			return false
		}

		delay := p.NextDelay()
		d.reporter.Event(report.Event{Kind: report.EventAttemptFailedWillRetry, RunID: p.RunID, AttemptID: attemptID, Delay: delay})
		if !d.sleepInterruptible(ctx, delay) {
			return false
		}
		d.reporter.Event(report.Event{Kind: report.EventRetryStarted, RunID: p.RunID, AttemptID: p.AttemptID()})
	}
}

// sleepInterruptible waits out delay as a pausable stopwatch: interruptible
// by Shutdown or OtherCancel, both of which abandon further retries, and
// pausable by Stop/Continue, which freeze the countdown without losing the
// remaining delay.
func (d *Dispatcher) sleepInterruptible(ctx context.Context, delay time.Duration) bool {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	remaining := delay
	last := time.Now()
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return false
		case now := <-ticker.C:
			if d.cancelled() {
				return false
			}
			elapsed := now.Sub(last)
			last = now
			if !d.isPaused() {
				remaining -= elapsed
			}
		}
	}
	return !d.cancelled()
}

func outcomePassed(r supervisor.Result) bool {
	switch r.Kind {
	case supervisor.ResultPass:
		return true
	case supervisor.ResultLeak, supervisor.ResultTimeout:
		return r.PassFail == ids.LeakResultPass
	default:
		return false
	}
}

// forwardSupervisorEvents relays a supervisor's Slow events to the
// reporter until quit is closed (by runWithRetries, once sup.Run has
// returned) — sup.Events() is never closed by the supervisor itself.
func (d *Dispatcher) forwardSupervisorEvents(sup *supervisor.Supervisor, runID string, attempt ids.AttemptID, quit <-chan struct{}) {
	for {
		select {
		case ev := <-sup.Events():
			if ev.Kind == supervisor.EventSlow {
				d.reporter.Event(report.Event{Kind: report.EventSlow, RunID: runID, AttemptID: attempt})
			}
		case <-quit:
			return
		}
	}
}

func (d *Dispatcher) watchSignals(ch <-chan os.Signal, cancel context.CancelFunc) {
	for sig := range ch {
		switch {
		case isPauseSignal(sig):
			d.setPaused(true)
			d.broadcast(supervisor.Request{Kind: supervisor.ReqStop})
			d.reporter.Event(report.Event{Kind: report.EventRunPaused})
		case isContinueSignal(sig):
			d.setPaused(false)
			d.broadcast(supervisor.Request{Kind: supervisor.ReqContinue})
			d.reporter.Event(report.Event{Kind: report.EventRunContinued})
		default:
			d.Cancel(ReasonSignal)
			cancel()
		}
	}
}
