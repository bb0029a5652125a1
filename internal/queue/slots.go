package queue

import "context"

// SlotAllocator hands out small integer slot numbers from a fixed-size
// pool, used to populate NEXTEST_TEST_GLOBAL_SLOT / NEXTEST_TEST_GROUP_SLOT
//. It is deliberately separate from the dispatcher's
// concurrency-limiting semaphores (golang.org/x/sync/semaphore, wired in
// internal/dispatch): a semaphore only counts permits, but the env
// contract needs a stable, reusable *number* naming which concurrent slot
// a test landed in.
type SlotAllocator struct {
	free chan int
	size int
}

// NewSlotAllocator creates an allocator with n slots, numbered 0..n-1.
// n <= 0 means "unbounded" (used for the implicit global group when no
// test-threads cap applies): Acquire always returns slot 0 and Release
// is a no-op, matching NEXTEST_TEST_GROUP_SLOT's documented "none" value.
func NewSlotAllocator(n int) *SlotAllocator {
	if n <= 0 {
		return &SlotAllocator{size: 0}
	}
	free := make(chan int, n)
	for i := 0; i < n; i++ {
		free <- i
	}
	return &SlotAllocator{free: free, size: n}
}

// Acquire blocks until a slot is available (or ctx is cancelled) and
// returns its number.
func (a *SlotAllocator) Acquire(ctx context.Context) (int, error) {
	if a.size == 0 {
		return 0, nil
	}
	select {
	case slot := <-a.free:
		return slot, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Release returns a slot to the pool. It is a no-op for an unbounded
// allocator.
func (a *SlotAllocator) Release(slot int) {
	if a.size == 0 {
		return
	}
	a.free <- slot
}
