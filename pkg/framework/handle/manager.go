// Package handle implements relocatable, lockable memory handles.
//
// A handle is an opaque value naming an entry in the manager's table. The bytes live in a
// memory.Block. While a handle is locked its block never moves; while unlocked a resize may
// move it to a new block, copying the content. Operations on a handle the manager does not
// know (never allocated or already freed) fail with ErrInvalidHandle and touch no memory.
package handle

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/debug"
	"github.com/justyntemme/filterhost/pkg/framework/memory"
)

var (
	// ErrInvalidHandle is returned for handles that were never allocated or are already freed.
	ErrInvalidHandle = errors.New("handle: invalid handle")
	// ErrOutOfMemory is returned when the backing memory refuses an allocation or a locked
	// handle cannot grow in place.
	ErrOutOfMemory = errors.New("handle: out of memory")
)

// masterSize is the size of a master pointer record: data address then size.
const masterSize = 2 * unsafe.Sizeof(uintptr(0))

// Manager owns every handle of one invocation.
type Manager struct {
	mu      sync.Mutex
	mem     memory.Memory
	masters bool
	log     debug.Logger
	nextID  filterapi.Handle
	entries map[filterapi.Handle]*entry
	stats   Stats
}

type entry struct {
	block  memory.Block
	size   int
	locks  int
	master memory.Block
}

// Stats summarises the manager's table.
type Stats struct {
	Live          int
	LiveBytes     int64
	Allocations   uint64
	Relocations   uint64
	RecoverHints  uint64
	RecoverWanted int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithMasterPointers makes each handle value the address of a two word record whose first
// word is the current data address. Plugins that dereference a handle directly rely on it.
func WithMasterPointers() Option {
	return func(m *Manager) { m.masters = true }
}

// WithLogger sets the logger used for teardown diagnostics.
func WithLogger(l debug.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a manager allocating from mem.
func NewManager(mem memory.Memory, opts ...Option) *Manager {
	m := &Manager{
		mem:     mem,
		log:     debug.Nop(),
		entries: make(map[filterapi.Handle]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MasterPointers reports whether handles are master pointer addresses.
func (m *Manager) MasterPointers() bool {
	return m.masters
}

// Allocate creates a handle of size bytes, zero filled.
func (m *Manager) Allocate(size int) (filterapi.Handle, error) {
	if size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrOutOfMemory, size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	block, err := m.mem.Alloc(size)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	e := &entry{block: block, size: size}

	var h filterapi.Handle
	if m.masters {
		e.master, err = m.mem.Alloc(int(masterSize))
		if err != nil {
			m.mem.Free(block)
			return 0, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
		}
		h = filterapi.Handle(e.master.Addr())
		e.syncMaster()
	} else {
		m.nextID++
		h = m.nextID
	}

	m.entries[h] = e
	m.stats.Live++
	m.stats.LiveBytes += int64(size)
	m.stats.Allocations++
	return h, nil
}

func (e *entry) syncMaster() {
	if e.master.IsZero() {
		return
	}
	words := unsafe.Slice((*uintptr)(unsafe.Pointer(&e.master.Bytes()[0])), 2)
	words[0] = e.block.Addr()
	words[1] = uintptr(e.size)
}

func (m *Manager) lookup(h filterapi.Handle) (*entry, error) {
	e, ok := m.entries[h]
	if !ok {
		return nil, ErrInvalidHandle
	}
	return e, nil
}

// Valid reports whether h names a live handle.
func (m *Manager) Valid(h filterapi.Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[h]
	return ok
}

// Size returns the logical size of h.
func (m *Manager) Size(h filterapi.Handle) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(h)
	if err != nil {
		return 0, err
	}
	return e.size, nil
}

// Bytes returns a view of the handle's content. The view is only meaningful until the next
// resize of an unlocked handle.
func (m *Manager) Bytes(h filterapi.Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(h)
	if err != nil {
		return nil, err
	}
	return e.block.Bytes()[:e.size], nil
}

// Resize changes the logical size of h, preserving content up to the smaller size. A locked
// handle keeps its address, so it can only grow within the capacity of its block.
func (m *Manager) Resize(h filterapi.Handle, size int) error {
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrOutOfMemory, size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(h)
	if err != nil {
		return err
	}

	if size <= e.block.Cap() {
		if size > e.size {
			clear(e.block.Bytes()[e.size:size])
		}
		m.stats.LiveBytes += int64(size - e.size)
		e.size = size
		e.syncMaster()
		return nil
	}

	if e.locks > 0 {
		return fmt.Errorf("%w: locked handle cannot grow from %d to %d bytes", ErrOutOfMemory, e.size, size)
	}

	block, err := m.mem.Alloc(size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	copy(block.Bytes(), e.block.Bytes()[:e.size])
	if err := m.mem.Free(e.block); err != nil {
		m.log.Warn("handle block release failed", "handle", uintptr(h), "error", err)
	}

	m.stats.LiveBytes += int64(size - e.size)
	m.stats.Relocations++
	e.block = block
	e.size = size
	e.syncMaster()
	return nil
}

// Lock pins h and returns the address of its data. Locks nest.
func (m *Manager) Lock(h filterapi.Handle, moveHigh bool) (uintptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(h)
	if err != nil {
		return 0, err
	}
	e.locks++
	return e.block.Addr(), nil
}

// Unlock releases one lock. Unlocking an unlocked handle does nothing.
func (m *Manager) Unlock(h filterapi.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(h)
	if err != nil {
		return err
	}
	if e.locks > 0 {
		e.locks--
	}
	return nil
}

// Locked reports whether h has an outstanding lock.
func (m *Manager) Locked(h filterapi.Handle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(h)
	if err != nil {
		return false, err
	}
	return e.locks > 0, nil
}

// Free releases h. Outstanding locks do not prevent it.
func (m *Manager) Free(h filterapi.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(h)
	if err != nil {
		return err
	}
	m.release(h, e)
	return nil
}

func (m *Manager) release(h filterapi.Handle, e *entry) {
	delete(m.entries, h)
	if err := m.mem.Free(e.block); err != nil {
		m.log.Warn("handle block release failed", "handle", uintptr(h), "error", err)
	}
	if !e.master.IsZero() {
		if err := m.mem.Free(e.master); err != nil {
			m.log.Warn("master pointer release failed", "handle", uintptr(h), "error", err)
		}
	}
	m.stats.Live--
	m.stats.LiveBytes -= int64(e.size)
}

// RecoverSpace records a request to make room for size bytes. Nothing is purged.
func (m *Manager) RecoverSpace(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.RecoverHints++
	m.stats.RecoverWanted += int64(size)
}

// FindByAddress returns the handle whose data block contains addr.
func (m *Manager) FindByAddress(addr uintptr) (filterapi.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for h, e := range m.entries {
		if e.block.Contains(addr) {
			return h, true
		}
	}
	return 0, false
}

// Sweep frees every live handle and returns how many there were.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.entries)
	for h, e := range m.entries {
		m.log.Debug("sweeping leaked handle", "handle", uintptr(h), "size", e.size, "locks", e.locks)
		m.release(h, e)
	}
	return n
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
