package slab

import (
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Violation is a bit mask of broken structural invariants; zero means the list is consistent.
type Violation uint32

const (
	ViolationState      Violation = 1 << iota // List is nil, uninitialized or destroyed.
	ViolationCapacity                         // capacity <= size or size < 0.
	ViolationBuffers                          // Buffer lengths disagree with capacity and element size.
	ViolationFreeIndex                        // free is out of [1, capacity].
	ViolationFreeEmpty                        // free == capacity disagrees with size+1 == capacity.
	ViolationFreeLinks                        // A free-cycle link is out of range or not mutual.
	ViolationFreeFlag                         // A free-cycle member is marked busy.
	ViolationFreeLength                       // The free cycle doesn't close after capacity-size-1 steps.
	ViolationBusyLinks                        // A busy-cycle link is out of range or not mutual.
	ViolationBusyFlag                         // A busy-cycle member is marked free.
	ViolationBusyLength                       // The busy cycle doesn't close at the sentinel after size+1 steps.
	ViolationPartition                        // A slot is in both cycles or in neither.
)

var violationNames = []struct {
	bit  Violation
	name string
}{
	{ViolationState, "state"},
	{ViolationCapacity, "capacity"},
	{ViolationBuffers, "buffers"},
	{ViolationFreeIndex, "free_index"},
	{ViolationFreeEmpty, "free_empty"},
	{ViolationFreeLinks, "free_links"},
	{ViolationFreeFlag, "free_flag"},
	{ViolationFreeLength, "free_length"},
	{ViolationBusyLinks, "busy_links"},
	{ViolationBusyFlag, "busy_flag"},
	{ViolationBusyLength, "busy_length"},
	{ViolationPartition, "partition"},
}

// Has reports whether any of the given bits are set.
func (v Violation) Has(bits Violation) bool {
	return v&bits != 0
}

// String joins the names of the set bits with '|', or returns "none".
func (v Violation) String() string {
	if v == 0 {
		return "none"
	}
	var names []string
	for _, entry := range violationNames {
		if v.Has(entry.bit) {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, "|")
}

// Verify checks both cycles in O(capacity) and returns every violated invariant.
func (l *List) Verify() Violation {
	if l == nil || l.state != stateReady {
		return ViolationState
	}

	var violations Violation
	if l.size < 0 || l.capacity <= l.size {
		violations |= ViolationCapacity
	}
	if l.elementSize <= 0 || len(l.nodes) != l.capacity || len(l.payload) != l.capacity*l.elementSize {
		violations |= ViolationBuffers
	}
	if l.free < 1 || l.free > l.capacity {
		violations |= ViolationFreeIndex
	}
	if (l.free == l.capacity) != (l.size+1 == l.capacity) {
		violations |= ViolationFreeEmpty
	}
	// Walking needs sane bounds.
	if violations.Has(ViolationCapacity | ViolationBuffers) {
		return violations
	}

	busy := bitset.New(uint(l.capacity))
	violations |= l.verifyBusyCycle(busy)
	free := bitset.New(uint(l.capacity))
	if !violations.Has(ViolationFreeIndex) && l.free != l.capacity {
		violations |= l.verifyFreeCycle(free, busy)
	}
	if busy.IntersectionCardinality(free) != 0 || busy.UnionCardinality(free) != uint(l.capacity) {
		violations |= ViolationPartition
	}
	return violations
}

// verifyBusyCycle walks size+1 steps from the sentinel, recording visited slots in `visited`.
func (l *List) verifyBusyCycle(visited *bitset.BitSet) Violation {
	var violations Violation
	slot := 0
	for range l.size + 1 {
		if visited.Test(uint(slot)) { // Closed too early.
			return violations | ViolationBusyLength
		}
		visited.Set(uint(slot))
		n := l.nodes[slot]
		if !n.busy {
			violations |= ViolationBusyFlag
		}
		if n.next < 0 || n.next >= l.capacity || l.nodes[n.next].prev != slot {
			return violations | ViolationBusyLinks
		}
		slot = n.next
	}
	if slot != 0 {
		violations |= ViolationBusyLength
	}
	return violations
}

// verifyFreeCycle walks capacity-size-1 steps from `free`; `busy` holds the slots already claimed by the busy cycle.
func (l *List) verifyFreeCycle(visited, busy *bitset.BitSet) Violation {
	var violations Violation
	slot := l.free
	for range l.capacity - l.size - 1 {
		if busy.Test(uint(slot)) {
			return violations | ViolationPartition
		}
		if visited.Test(uint(slot)) {
			return violations | ViolationFreeLength
		}
		visited.Set(uint(slot))
		n := l.nodes[slot]
		if n.busy {
			violations |= ViolationFreeFlag
		}
		if n.next <= 0 || n.next >= l.capacity || l.nodes[n.next].prev != slot {
			return violations | ViolationFreeLinks
		}
		slot = n.next
	}
	if slot != l.free {
		violations |= ViolationFreeLength
	}
	return violations
}
