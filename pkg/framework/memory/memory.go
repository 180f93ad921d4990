// Package memory provides the backing store for handle and buffer allocations. Blocks
// handed out here have fixed addresses for their whole lifetime, so their address can be
// given to native code.
package memory

import (
	"errors"
	"unsafe"
)

var (
	// ErrOutOfMemory is returned when the configured limit or the system refuses an allocation.
	ErrOutOfMemory = errors.New("memory: out of memory")
	// ErrUnknownBlock is returned when freeing a block this memory did not hand out.
	ErrUnknownBlock = errors.New("memory: unknown block")
	// ErrClosed is returned by allocations after Close.
	ErrClosed = errors.New("memory: closed")
)

// Alignment of every block address.
const Alignment = 16

// Block is a fixed-address span of memory. Its capacity may exceed the requested size.
type Block struct {
	data []byte
}

// Bytes returns the whole block.
func (b Block) Bytes() []byte { return b.data }

// Cap returns the usable capacity of the block.
func (b Block) Cap() int { return len(b.data) }

// IsZero reports whether b is the zero Block.
func (b Block) IsZero() bool { return b.data == nil }

// Addr returns the address of the first byte.
func (b Block) Addr() uintptr {
	if len(b.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.data[0]))
}

// Contains reports whether addr falls inside the block.
func (b Block) Contains(addr uintptr) bool {
	base := b.Addr()
	return base != 0 && addr >= base && addr < base+uintptr(len(b.data))
}

// Memory allocates and frees blocks.
type Memory interface {
	// Alloc returns a zeroed block of at least size bytes.
	Alloc(size int) (Block, error)
	Free(b Block) error
	Stats() Stats
	Close() error
}

// Stats reports the usage of a Memory.
type Stats struct {
	InUse    int64 // bytes in live blocks, by capacity
	Reserved int64 // bytes obtained from the system
	Live     int
	Allocs   uint64
	Frees    uint64
}

func roundUp(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}
