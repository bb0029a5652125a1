package dispatch

import (
	"runtime"
	"sync"
)

// numCPU is cached once, on the first NumCPU call, backing the `test-threads = 0` "use all cores"
// default.
var (
	numCPUOnce sync.Once
	numCPUValue int
)

// NumCPU returns the process-wide cached core count.
func NumCPU() int {
	numCPUOnce.Do(func() { numCPUValue = runtime.NumCPU() })
	return numCPUValue
}

// resolveThreads maps a configured test-threads value to an actual permit
// count: 0 (or negative) means "use every core".
func resolveThreads(configured int) int {
	if configured <= 0 {
		return NumCPU()
	}
	return configured
}
