package slab

// resolve returns the slot holding logical position `pos`, walking from whichever end of the busy cycle is closer.
// `pos == size` resolves to the sentinel, i.e. the successor of the last element. Callers validate `pos`.
func (l *List) resolve(pos int) int {
	slot := 0
	if 2*pos <= l.size {
		for range pos + 1 {
			slot = l.nodes[slot].next
		}
	} else {
		for range l.size - pos {
			slot = l.nodes[slot].prev
		}
	}
	return slot
}
