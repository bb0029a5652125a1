//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// DefaultSoftSignal is SIGTERM, the soft signal TerminateChild sends
// before the grace-period SIGKILL escalation.
const DefaultSoftSignal = Signal(syscall.SIGTERM)

// configureProcAttr puts the child in its own process group so a single
// signal can reach every descendant it spawns.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to the child's process group, falling back to
// the lone pid if the group send fails (e.g. the group already reaped).
func signalGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil {
		return syscall.Kill(pid, sig)
	}
	return nil
}

func (s *Supervisor) sendSoft(sig Signal) error {
	return signalGroup(s.cmd.Process.Pid, syscall.Signal(sig))
}

func (s *Supervisor) sendStop() error {
	return signalGroup(s.cmd.Process.Pid, syscall.SIGTSTP)
}

func (s *Supervisor) sendContinue() error {
	return signalGroup(s.cmd.Process.Pid, syscall.SIGCONT)
}

func (s *Supervisor) hardKill() error {
	return signalGroup(s.cmd.Process.Pid, syscall.SIGKILL)
}

// extractFailureStatus maps a process Wait error into the ExitCode/Signal
// half of this failure-status sum (POSIX has no job-object case).
func extractFailureStatus(exitErr error) FailureStatus {
	exitError, ok := exitErr.(*exec.ExitError)
	if !ok {
		return FailureStatus{AbortStatus: exitErr.Error()}
	}
	status, ok := exitError.Sys().(syscall.WaitStatus)
	if !ok {
		code := exitError.ExitCode()
		return FailureStatus{ExitCode: &code}
	}
	if status.Signaled() {
		sig := int(status.Signal())
		return FailureStatus{Signal: &sig}
	}
	code := status.ExitStatus()
	return FailureStatus{ExitCode: &code}
}

// afterStart is a no-op on POSIX: the process group configured in
// configureProcAttr is already sufficient for group-wide signal delivery.
func (s *Supervisor) afterStart() error { return nil }
