package memory

import (
	"sync"
)

// Heap serves blocks from the Go heap. The Go collector does not move heap objects, and
// every live block stays referenced here, so addresses remain valid until Free. Sessions
// fall back to it when no memory is given; native modules bring their own Arena.
type Heap struct {
	mu     sync.Mutex
	limit  int64
	live   map[uintptr][]byte
	stats  Stats
	closed bool
}

var _ Memory = (*Heap)(nil)

// NewHeap creates a heap memory that refuses allocations beyond limit bytes in use.
// A limit of zero means unlimited.
func NewHeap(limit int64) *Heap {
	return &Heap{limit: limit, live: make(map[uintptr][]byte)}
}

func (h *Heap) Alloc(size int) (Block, error) {
	if size < 0 {
		return Block{}, ErrOutOfMemory
	}
	capacity := roundUp(max(size, 1), Alignment)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return Block{}, ErrClosed
	}
	if h.limit > 0 && h.stats.InUse+int64(capacity) > h.limit {
		return Block{}, ErrOutOfMemory
	}

	// Over-allocate so the first byte can be aligned.
	raw := make([]byte, capacity+Alignment)
	b := Block{data: raw}
	off := roundUp(int(b.Addr()), Alignment) - int(b.Addr())
	b.data = raw[off : off+capacity : off+capacity]

	h.live[b.Addr()] = raw
	h.stats.InUse += int64(capacity)
	h.stats.Reserved += int64(len(raw))
	h.stats.Live++
	h.stats.Allocs++
	return b, nil
}

func (h *Heap) Free(b Block) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	raw, ok := h.live[b.Addr()]
	if !ok {
		return ErrUnknownBlock
	}
	delete(h.live, b.Addr())
	h.stats.InUse -= int64(b.Cap())
	h.stats.Reserved -= int64(len(raw))
	h.stats.Live--
	h.stats.Frees++
	return nil
}

func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Close drops every block.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live = make(map[uintptr][]byte)
	h.stats.InUse, h.stats.Reserved, h.stats.Live = 0, 0, 0
	h.closed = true
	return nil
}
