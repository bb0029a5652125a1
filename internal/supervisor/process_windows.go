//go:build windows

package supervisor

import (
	"fmt"
	"os/exec"
	"syscall"
)

var (
	kernel32 = syscall.NewLazyDLL("kernel32.dll")
	procCreateJobObjectW = kernel32.NewProc("CreateJobObjectW")
	procAssignProcess = kernel32.NewProc("AssignProcessToJobObject")
	procTerminateJob = kernel32.NewProc("TerminateJobObject")
	procCloseHandle = kernel32.NewProc("CloseHandle")
	procGenerateCtrlEvt = kernel32.NewProc("GenerateConsoleCtrlEvent")
)

const ctrlBreakEvent = 1

// DefaultSoftSignal has no real meaning on Windows (sendSoft ignores its
// argument and always sends Ctrl-Break); kept so dispatch code is
// build-tag-free.
const DefaultSoftSignal = Signal(0)

// configureProcAttr isolates the child into its own process group so a
// Ctrl-Break event can reach it without also killing xtr itself. The
// child is additionally assigned to a job object once started (see
// Spawn), so TerminateJobObject can reap any grandchildren Windows would
// otherwise orphan on a bare TerminateProcess.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// createJobObject creates an unnamed job object and assigns pid to it,
// so hardKill can terminate the whole tree via TerminateJobObject rather
// than a single-process TerminateProcess.
func createJobObject(pid int) (syscall.Handle, error) {
	h, _, err := procCreateJobObjectW.Call(0, 0)
	if h == 0 {
		return 0, fmt.Errorf("CreateJobObjectW: %w", err)
	}
	handle := syscall.Handle(h)

	procHandle, err := syscall.OpenProcess(syscall.PROCESS_ALL_ACCESS, false, uint32(pid))
	if err != nil {
		procCloseHandle.Call(uintptr(handle))
		return 0, fmt.Errorf("OpenProcess: %w", err)
	}
	defer syscall.CloseHandle(procHandle)

	ok, _, err := procAssignProcess.Call(uintptr(handle), uintptr(procHandle))
	if ok == 0 {
		procCloseHandle.Call(uintptr(handle))
		return 0, fmt.Errorf("AssignProcessToJobObject: %w", err)
	}
	return handle, nil
}

func (s *Supervisor) sendSoft(_ Signal) error {
	// No POSIX signal delivery on Windows; a graceful stop is simulated
	// with Ctrl-Break to the child's process group.
	ok, _, err := procGenerateCtrlEvt.Call(ctrlBreakEvent, uintptr(s.cmd.Process.Pid))
	if ok == 0 {
		return fmt.Errorf("GenerateConsoleCtrlEvent: %w", err)
	}
	return nil
}

func (s *Supervisor) sendStop() error {
	// Windows has no SIGTSTP equivalent; Stop/Continue are no-ops here,
	// matching how cargo-nextest itself treats pause/resume on this OS.
	return nil
}

func (s *Supervisor) sendContinue() error { return nil }

func (s *Supervisor) hardKill() error {
	if s.jobHandle == 0 {
		return s.cmd.Process.Kill()
	}
	ok, _, err := procTerminateJob.Call(uintptr(s.jobHandle), 1)
	if ok == 0 {
		return fmt.Errorf("TerminateJobObject: %w", err)
	}
	s.killedByJobObject = true
	return nil
}

// extractFailureStatus maps a process Wait error into the failure-status
// sum. When the job object performed the kill, ExitCode is additionally
// marked untrustworthy, since job-object termination masks the real exit
// code.
func extractFailureStatus(exitErr error) FailureStatus {
	exitError, ok := exitErr.(*exec.ExitError)
	if !ok {
		return FailureStatus{AbortStatus: exitErr.Error()}
	}
	code := exitError.ExitCode()
	return FailureStatus{ExitCode: &code}
}

// afterStart assigns the freshly-started child to a job object so
// hardKill can terminate its whole descendant tree.
func (s *Supervisor) afterStart() error {
	h, err := createJobObject(s.cmd.Process.Pid)
	if err != nil {
		return err
	}
	s.jobHandle = uintptr(h)
	return nil
}
