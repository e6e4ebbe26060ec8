// Arena buffers are ordinary Go slices, so the runtime never reports a failed allocation back to us.
// The Allocator gate gives the arena a point where growth can be refused: it reserves bytes per
// buffer before the slices are built, which lets the resize manager stage both buffers and commit
// only when every reservation succeeded.

package slab

import (
	"fmt"
	"sync"
)

// Buffer identifies one of the two parallel arena buffers.
type Buffer uint8

const (
	NodeBuffer    Buffer = iota // Per-slot prev/next/busy metadata.
	PayloadBuffer               // Per-slot raw element bytes.
)

func (b Buffer) String() string {
	switch b {
	case NodeBuffer:
		return "nodes"
	case PayloadBuffer:
		return "payload"
	default:
		return fmt.Sprintf("buffer(%d)", uint8(b))
	}
}

// Allocator decides whether an arena buffer may take `bytes` more bytes.
// Reserve must not retain a failed reservation; Release returns bytes previously reserved.
type Allocator interface {
	Reserve(buf Buffer, bytes int64) error
	Release(buf Buffer, bytes int64)
}

// unlimited accepts every reservation.
type unlimited struct{}

var _ Allocator = unlimited{}

func (unlimited) Reserve(Buffer, int64) error { return nil }
func (unlimited) Release(Buffer, int64)       {}

// Budget is an Allocator capping the total bytes reserved across both buffers.
// It is safe for concurrent use, so one Budget may be shared by several lists.
type Budget struct { // Implements Allocator.
	mux      sync.Mutex
	maxBytes int64
	used     int64
}

var _ Allocator = (*Budget)(nil)

// NewBudget returns a Budget allowing at most `maxBytes` reserved bytes; maxBytes <= 0 means unlimited.
func NewBudget(maxBytes int64) *Budget {
	return &Budget{maxBytes: maxBytes}
}

// Reserve accounts `bytes` against the budget or fails with ErrAllocation.
func (b *Budget) Reserve(buf Buffer, bytes int64) error {
	b.mux.Lock()
	defer b.mux.Unlock()
	if bytes < 0 {
		return fmt.Errorf("%w: negative %s reservation %d", ErrAllocation, buf, bytes)
	}
	if b.maxBytes > 0 && b.used+bytes > b.maxBytes {
		return fmt.Errorf("%w: %s needs %d bytes, %d of %d in use", ErrAllocation, buf, bytes, b.used, b.maxBytes)
	}
	b.used += bytes
	return nil
}

// Release gives back `bytes` previously reserved.
func (b *Budget) Release(_ Buffer, bytes int64) {
	b.mux.Lock()
	defer b.mux.Unlock()
	b.used -= bytes
	if b.used < 0 {
		b.used = 0
	}
}

// Used returns the number of bytes currently reserved.
func (b *Budget) Used() int64 {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.used
}
