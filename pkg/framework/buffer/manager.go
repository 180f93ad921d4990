// Package buffer implements the non-relocatable buffer allocations offered to plug-ins.
package buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/debug"
	"github.com/justyntemme/filterhost/pkg/framework/memory"
)

var (
	// ErrInvalidBuffer is returned for tokens that were never allocated or are already freed.
	ErrInvalidBuffer = errors.New("buffer: invalid buffer")
	// ErrOutOfMemory is returned when the budget or the backing memory refuses an allocation.
	ErrOutOfMemory = errors.New("buffer: out of memory")
)

// Manager owns the buffers of one invocation.
type Manager struct {
	mu      sync.Mutex
	mem     memory.Memory
	budget  int64
	log     debug.Logger
	nextID  filterapi.BufferID
	entries map[filterapi.BufferID]*entry
	inUse   int64
}

type entry struct {
	block memory.Block
	size  int
	locks int
}

// NewManager creates a manager with the given budget in bytes. A budget of zero means
// unlimited, with AvailableSpace reporting the backing memory's own view.
func NewManager(mem memory.Memory, budget int64, log debug.Logger) *Manager {
	if log == nil {
		log = debug.Nop()
	}
	return &Manager{
		mem:     mem,
		budget:  budget,
		log:     log,
		entries: make(map[filterapi.BufferID]*entry),
	}
}

// Allocate creates a buffer of size bytes.
func (m *Manager) Allocate(size int) (filterapi.BufferID, error) {
	if size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrOutOfMemory, size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget > 0 && m.inUse+int64(size) > m.budget {
		return 0, fmt.Errorf("%w: %d bytes requested, %d available", ErrOutOfMemory, size, m.budget-m.inUse)
	}
	block, err := m.mem.Alloc(size)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}

	m.nextID++
	m.entries[m.nextID] = &entry{block: block, size: size}
	m.inUse += int64(size)
	return m.nextID, nil
}

// AllocateAtLeast tries requested bytes and shrinks toward minimum while the budget
// refuses, returning the granted size.
func (m *Manager) AllocateAtLeast(requested, minimum int) (filterapi.BufferID, int, error) {
	if minimum > requested {
		minimum = requested
	}
	size := requested
	for {
		id, err := m.Allocate(size)
		if err == nil {
			return id, size, nil
		}
		if size <= minimum {
			return 0, 0, err
		}
		size = max(size/2, minimum)
	}
}

func (m *Manager) lookup(id filterapi.BufferID) (*entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrInvalidBuffer
	}
	return e, nil
}

// Lock returns the buffer's address. Buffers never move, so this is bookkeeping only.
func (m *Manager) Lock(id filterapi.BufferID) (uintptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	e.locks++
	return e.block.Addr(), nil
}

// Unlock drops one lock. Unlocking an unlocked buffer does nothing.
func (m *Manager) Unlock(id filterapi.BufferID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	if e.locks > 0 {
		e.locks--
	}
	return nil
}

// Free releases a buffer.
func (m *Manager) Free(id filterapi.BufferID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	m.release(id, e)
	return nil
}

func (m *Manager) release(id filterapi.BufferID, e *entry) {
	delete(m.entries, id)
	m.inUse -= int64(e.size)
	if err := m.mem.Free(e.block); err != nil {
		m.log.Warn("buffer release failed", "buffer", uintptr(id), "error", err)
	}
}

// Size returns the requested size of a buffer.
func (m *Manager) Size(id filterapi.BufferID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	return e.size, nil
}

// Bytes returns the buffer content.
func (m *Manager) Bytes(id filterapi.BufferID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.block.Bytes()[:e.size], nil
}

// FindByAddress maps a buffer's data address back to its token.
func (m *Manager) FindByAddress(addr uintptr) (filterapi.BufferID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.entries {
		if e.block.Addr() == addr {
			return id, true
		}
	}
	return 0, false
}

// AvailableSpace estimates the bytes a plug-in may still allocate. It is never negative.
func (m *Manager) AvailableSpace() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget <= 0 {
		return 1 << 30
	}
	return max(m.budget-m.inUse, 0)
}

// Live returns the number of live buffers.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep frees every live buffer and returns how many there were.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.entries)
	for id, e := range m.entries {
		m.log.Debug("sweeping leaked buffer", "buffer", uintptr(id), "size", e.size)
		m.release(id, e)
	}
	return n
}
