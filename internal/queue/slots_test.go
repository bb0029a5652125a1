package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotAllocatorHandsOutDistinctSlots(t *testing.T) {
	a := NewSlotAllocator(2)
	ctx := context.Background()

	s1, err := a.Acquire(ctx)
	require.NoError(t, err)
	s2, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)

	a.Release(s1)
	s3, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, s1, s3)
}

func TestSlotAllocatorBlocksWhenExhausted(t *testing.T) {
	a := NewSlotAllocator(1)
	ctx := context.Background()

	_, err := a.Acquire(ctx)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = a.Acquire(ctxTimeout)
	assert.Error(t, err)
}

func TestSlotAllocatorUnboundedAlwaysReturnsZero(t *testing.T) {
	a := NewSlotAllocator(0)
	s1, err := a.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, s1)
	a.Release(s1) // must not block or panic
}
