package memory

import (
	"fmt"
	"math/bits"
	"sync"
)

// Buddy block sizes inside a chunk.
const (
	MinBlockSize     = 64
	DefaultChunkSize = 4 << 20
)

// Arena serves blocks from memory mapped outside the Go heap. Small and medium requests
// come from power-of-two chunks split with a buddy allocator; requests larger than a
// chunk get a dedicated mapping.
type Arena struct {
	mu        sync.Mutex
	chunkSize int
	levels    int
	limit     int64
	chunks    []*chunk
	large     map[uintptr][]byte
	stats     Stats
	closed    bool
}

var _ Memory = (*Arena)(nil)

type chunk struct {
	mem       []byte
	base      uintptr
	free      []map[int]struct{} // per level, block offsets
	allocated map[int]int        // offset -> level
}

// ArenaOption configures an Arena.
type ArenaOption func(*Arena)

// WithChunkSize sets the chunk size; it is rounded up to a power of two.
func WithChunkSize(n int) ArenaOption {
	return func(a *Arena) {
		if n < MinBlockSize {
			n = MinBlockSize
		}
		a.chunkSize = 1 << bits.Len(uint(n-1))
	}
}

// WithLimit caps the bytes obtained from the system. Zero means unlimited.
func WithLimit(limit int64) ArenaOption {
	return func(a *Arena) { a.limit = limit }
}

// NewArena creates an empty arena. Memory is mapped on first use.
func NewArena(opts ...ArenaOption) *Arena {
	a := &Arena{chunkSize: DefaultChunkSize, large: make(map[uintptr][]byte)}
	for _, opt := range opts {
		opt(a)
	}
	a.levels = bits.Len(uint(a.chunkSize/MinBlockSize))
	return a
}

func (a *Arena) levelSize(level int) int {
	return MinBlockSize << uint(level)
}

func (a *Arena) sizeToLevel(size int) int {
	level := 0
	for a.levelSize(level) < size {
		level++
	}
	return level
}

func (a *Arena) Alloc(size int) (Block, error) {
	if size < 0 {
		return Block{}, ErrOutOfMemory
	}
	size = max(size, 1)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return Block{}, ErrClosed
	}

	var b Block
	if size > a.chunkSize {
		mem, err := a.mapLocked(roundUp(size, pageSize()))
		if err != nil {
			return Block{}, err
		}
		b = Block{data: mem}
		a.large[b.Addr()] = mem
	} else {
		level := a.sizeToLevel(size)
		c, off, err := a.findBlock(level)
		if err != nil {
			return Block{}, err
		}
		n := a.levelSize(level)
		b = Block{data: c.mem[off : off+n : off+n]}
		clear(b.data)
	}

	a.stats.InUse += int64(b.Cap())
	a.stats.Live++
	a.stats.Allocs++
	return b, nil
}

func (a *Arena) findBlock(level int) (*chunk, int, error) {
	for _, c := range a.chunks {
		if off, ok := a.takeFrom(c, level); ok {
			return c, off, nil
		}
	}

	mem, err := a.mapLocked(a.chunkSize)
	if err != nil {
		return nil, 0, err
	}
	c := &chunk{
		mem:       mem,
		base:      Block{data: mem}.Addr(),
		free:      make([]map[int]struct{}, a.levels),
		allocated: make(map[int]int),
	}
	for i := range c.free {
		c.free[i] = make(map[int]struct{})
	}
	c.free[a.levels-1][0] = struct{}{}
	a.chunks = append(a.chunks, c)

	off, _ := a.takeFrom(c, level)
	return c, off, nil
}

// takeFrom pops a free block at level, splitting a larger one when needed.
func (a *Arena) takeFrom(c *chunk, level int) (int, bool) {
	from := -1
	for l := level; l < a.levels; l++ {
		if len(c.free[l]) > 0 {
			from = l
			break
		}
	}
	if from < 0 {
		return 0, false
	}

	off := lowest(c.free[from])
	delete(c.free[from], off)
	for l := from - 1; l >= level; l-- {
		c.free[l][off+a.levelSize(l)] = struct{}{}
	}
	c.allocated[off] = level
	return off, true
}

func lowest(set map[int]struct{}) int {
	low := -1
	for off := range set {
		if low < 0 || off < low {
			low = off
		}
	}
	return low
}

func (a *Arena) Free(b Block) error {
	addr := b.Addr()

	a.mu.Lock()
	defer a.mu.Unlock()

	if mem, ok := a.large[addr]; ok {
		delete(a.large, addr)
		a.stats.InUse -= int64(b.Cap())
		a.stats.Live--
		a.stats.Frees++
		return a.unmapLocked(mem)
	}

	for _, c := range a.chunks {
		if addr < c.base || addr >= c.base+uintptr(len(c.mem)) {
			continue
		}
		off := int(addr - c.base)
		level, ok := c.allocated[off]
		if !ok {
			return ErrUnknownBlock
		}
		delete(c.allocated, off)
		a.coalesce(c, off, level)
		a.stats.InUse -= int64(a.levelSize(level))
		a.stats.Live--
		a.stats.Frees++
		return nil
	}
	return ErrUnknownBlock
}

func (a *Arena) coalesce(c *chunk, off, level int) {
	for level < a.levels-1 {
		buddy := off ^ a.levelSize(level)
		if _, free := c.free[level][buddy]; !free {
			break
		}
		delete(c.free[level], buddy)
		off = min(off, buddy)
		level++
	}
	c.free[level][off] = struct{}{}
}

func (a *Arena) mapLocked(n int) ([]byte, error) {
	if a.limit > 0 && a.stats.Reserved+int64(n) > a.limit {
		return nil, ErrOutOfMemory
	}
	mem, err := mapPages(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	a.stats.Reserved += int64(len(mem))
	return mem, nil
}

func (a *Arena) unmapLocked(mem []byte) error {
	a.stats.Reserved -= int64(len(mem))
	return unmapPages(mem)
}

func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Close unmaps everything. Blocks still live become invalid.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var firstErr error
	for _, c := range a.chunks {
		if err := a.unmapLocked(c.mem); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, mem := range a.large {
		if err := a.unmapLocked(mem); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.chunks = nil
	a.large = nil
	a.stats.InUse, a.stats.Live = 0, 0
	return firstErr
}
