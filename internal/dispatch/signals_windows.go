//go:build windows

package dispatch

import (
	"os"
	"syscall"
)

// Windows has no SIGTSTP/SIGCONT equivalent, so every watched signal maps
// to Shutdown ("Signal routing" only specifies POSIX
// terminal-stop semantics).
func watchedSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

func isPauseSignal(sig os.Signal) bool { return false }
func isContinueSignal(sig os.Signal) bool { return false }
