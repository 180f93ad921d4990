package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/debug"
	"github.com/justyntemme/filterhost/pkg/framework/memory"
)

func TestAllocateLockFree(t *testing.T) {
	m := NewManager(memory.NewHeap(0), 0, debug.NewTestLogger(t))

	id, err := m.Allocate(256)
	require.NoError(t, err)

	first, err := m.Lock(id)
	require.NoError(t, err)
	require.NotZero(t, first)
	require.NoError(t, m.Unlock(id))
	require.NoError(t, m.Unlock(id))

	second, err := m.Lock(id)
	require.NoError(t, err)
	assert.Equal(t, first, second, "buffers never move")

	found, ok := m.FindByAddress(first)
	assert.True(t, ok)
	assert.Equal(t, id, found)

	size, err := m.Size(id)
	require.NoError(t, err)
	assert.Equal(t, 256, size)

	require.NoError(t, m.Free(id))
	assert.Equal(t, 0, m.Live())
}

func TestFreedBufferIsRejected(t *testing.T) {
	m := NewManager(memory.NewHeap(0), 0, nil)
	id, err := m.Allocate(8)
	require.NoError(t, err)
	require.NoError(t, m.Free(id))

	for _, bogus := range []filterapi.BufferID{id, 0, 999} {
		_, err = m.Lock(bogus)
		assert.ErrorIs(t, err, ErrInvalidBuffer)
		assert.ErrorIs(t, m.Unlock(bogus), ErrInvalidBuffer)
		assert.ErrorIs(t, m.Free(bogus), ErrInvalidBuffer)
		_, err = m.Size(bogus)
		assert.ErrorIs(t, err, ErrInvalidBuffer)
		_, err = m.Bytes(bogus)
		assert.ErrorIs(t, err, ErrInvalidBuffer)
	}
}

func TestBudget(t *testing.T) {
	m := NewManager(memory.NewHeap(0), 1000, nil)
	assert.Equal(t, int64(1000), m.AvailableSpace())

	id, err := m.Allocate(600)
	require.NoError(t, err)
	assert.Equal(t, int64(400), m.AvailableSpace())

	_, err = m.Allocate(600)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	t.Run("AllocateAtLeastShrinks", func(t *testing.T) {
		got, size, err := m.AllocateAtLeast(1000, 100)
		require.NoError(t, err)
		assert.Equal(t, 250, size)
		assert.Equal(t, int64(150), m.AvailableSpace())
		require.NoError(t, m.Free(got))
	})

	t.Run("AllocateAtLeastFails", func(t *testing.T) {
		_, _, err := m.AllocateAtLeast(1000, 500)
		assert.ErrorIs(t, err, ErrOutOfMemory)
	})

	require.NoError(t, m.Free(id))
	assert.Equal(t, int64(1000), m.AvailableSpace())
}

func TestSweep(t *testing.T) {
	heap := memory.NewHeap(0)
	m := NewManager(heap, 0, debug.NewTestLogger(t))
	for i := 0; i < 4; i++ {
		_, err := m.Allocate(16)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, m.Sweep())
	assert.Equal(t, 0, heap.Stats().Live)
	assert.Equal(t, 0, m.Sweep())
}
