package slab

import (
	"fmt"
	"log/slog"
	"math"
	"unsafe"
)

// node is the per-slot metadata. Slots are addressed by index only, so relocating the arena on growth never
// invalidates a link.
type node struct {
	prev, next int
	busy       bool
}

var nodeBytes = int64(unsafe.Sizeof(node{}))

// arena holds the two parallel buffers. Slot i owns nodes[i] and payload[i*elementSize:(i+1)*elementSize].
type arena struct {
	nodes       []node
	payload     []byte
	elementSize int
	allocator   Allocator
}

// slot returns the payload bytes of slot `i`, capped so appends can't spill into the neighbour.
func (a *arena) slot(i int) []byte {
	lo, hi := i*a.elementSize, (i+1)*a.elementSize
	return a.payload[lo:hi:hi]
}

// reservation returns the bytes the node and payload buffers need for `slots` slots.
func (a *arena) reservation(slots int) (nodes, payload int64) {
	return int64(slots) * nodeBytes, int64(slots) * int64(a.elementSize)
}

// stage reserves and builds buffers for `newCapacity` slots without touching the current ones.
// Either both buffers are returned or neither is, and no reservation is retained on failure.
func (a *arena) stage(oldCapacity, newCapacity int) ([]node, []byte, error) {
	if newCapacity <= oldCapacity {
		return nil, nil, fmt.Errorf("%w: capacity %d does not grow %d", ErrAllocation, newCapacity, oldCapacity)
	}
	if a.elementSize > 0 && newCapacity > math.MaxInt/a.elementSize {
		return nil, nil, fmt.Errorf("%w: payload of %d slots overflows", ErrAllocation, newCapacity)
	}
	oldNodes, oldPayload := a.reservation(oldCapacity)
	newNodes, newPayload := a.reservation(newCapacity)
	if err := a.allocator.Reserve(NodeBuffer, newNodes-oldNodes); err != nil {
		return nil, nil, fmt.Errorf("failed to reserve node buffer: %w", err)
	}
	if err := a.allocator.Reserve(PayloadBuffer, newPayload-oldPayload); err != nil {
		a.allocator.Release(NodeBuffer, newNodes-oldNodes)
		return nil, nil, fmt.Errorf("failed to reserve payload buffer: %w", err)
	}
	nodes := make([]node, newCapacity)
	payload := make([]byte, newCapacity*a.elementSize)
	copy(nodes, a.nodes)
	copy(payload, a.payload)
	return nodes, payload, nil
}

// drop discards both buffers and returns their reservation to the allocator.
func (a *arena) drop() {
	nodes, payload := a.reservation(len(a.nodes))
	a.allocator.Release(NodeBuffer, nodes)
	a.allocator.Release(PayloadBuffer, payload)
	a.nodes, a.payload = nil, nil
}

// grow doubles the capacity. Called only when the free cycle is empty, which means the busy cycle occupies
// every slot in [0, capacity); the new free cycle is then the whole run [size+1, 2*capacity).
func (l *List) grow() error {
	if l.capacity > math.MaxInt/2 {
		return fmt.Errorf("%w: capacity %d cannot double", ErrAllocation, l.capacity)
	}
	newCapacity := 2 * l.capacity
	nodes, payload, err := l.stage(l.capacity, newCapacity)
	if err != nil {
		slog.Warn("Slab list growth refused.", "capacity", l.capacity, "newCapacity", newCapacity, "error", err)
		return err
	}

	l.nodes, l.payload = nodes, payload
	oldCapacity := l.capacity
	l.capacity = newCapacity
	l.free = l.size + 1
	l.threadFreeCycle(l.size+1, newCapacity)
	l.generation++ // Views point at the old payload buffer.
	resizesTotal.Inc()
	slog.Debug("Slab list grown.", "capacity", oldCapacity, "newCapacity", newCapacity, "size", l.size)
	return nil
}

// threadFreeCycle links slots [from, to) into one circular chain marked not-busy.
func (l *List) threadFreeCycle(from, to int) {
	for i := from; i < to; i++ {
		prev, next := i-1, i+1
		if i == from {
			prev = to - 1
		}
		if i == to-1 {
			next = from
		}
		l.nodes[i] = node{prev: prev, next: next}
	}
}
