// Spare slots are threaded into the free cycle, a circular doubly linked chain that shares the node buffer with
// the busy cycle but never links into it. `free` names one member, or equals capacity when the cycle is empty.

package slab

import "github.com/nobletooth/slablist/pkg/utils"

// acquire takes a slot out of the free cycle, growing the arena first when there is none.
// The returned slot is busy and self-linked; the caller splices it into the busy cycle.
func (l *List) acquire() (int, error) {
	if l.free == l.capacity {
		if err := l.grow(); err != nil {
			return 0, err
		}
	}
	slot := l.free
	n := &l.nodes[slot]
	if n.next == slot { // Last free slot.
		l.free = l.capacity
	} else {
		l.nodes[n.prev].next = n.next
		l.nodes[n.next].prev = n.prev
		l.free = n.next
	}
	n.prev, n.next, n.busy = slot, slot, true
	return slot, nil
}

// release pushes a slot, already unlinked from the busy cycle, onto the free cycle as its new head.
// The destructor runs first when `destruct` is set; the payload is zeroed either way.
func (l *List) release(slot int, destruct bool) {
	if slot <= 0 || slot >= l.capacity {
		utils.RaiseInvariant("slab", "release_out_of_range",
			"Tried to release a slot outside of the free-able range.", "slot", slot, "capacity", l.capacity)
		return
	}
	payload := l.slot(slot)
	if destruct && l.destructor != nil {
		l.destructor(payload)
	}
	clear(payload)

	n := &l.nodes[slot]
	n.busy = false
	if l.free == l.capacity { // Free cycle was empty.
		n.prev, n.next = slot, slot
	} else {
		head := l.free
		tail := l.nodes[head].prev
		n.prev, n.next = tail, head
		l.nodes[tail].next = slot
		l.nodes[head].prev = slot
	}
	l.free = slot
}

// linkBefore splices a detached busy `slot` into the busy cycle right before `successor`.
func (l *List) linkBefore(slot, successor int) {
	prev := l.nodes[successor].prev
	l.nodes[slot].prev, l.nodes[slot].next = prev, successor
	l.nodes[prev].next = slot
	l.nodes[successor].prev = slot
}

// unlink removes `slot` from the busy cycle, leaving it self-linked.
func (l *List) unlink(slot int) {
	n := &l.nodes[slot]
	l.nodes[n.prev].next = n.next
	l.nodes[n.next].prev = n.prev
	n.prev, n.next = slot, slot
}
