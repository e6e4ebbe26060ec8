package slab

import "fmt"

// View is a borrowed reference to one element's payload. It stays valid only until the next mutation of the list
// that produced it; after that every accessor reports ErrStaleView instead of exposing a recycled or relocated slot.
type View struct {
	list       *List
	slot       int
	pos        int
	generation uint64
}

func (l *List) view(slot, pos int) View {
	return View{list: l, slot: slot, pos: pos, generation: l.generation}
}

// Valid reports whether the view can still be read.
func (v View) Valid() bool {
	return v.list != nil && v.list.state == stateReady && v.list.generation == v.generation
}

// Position returns the logical position the element had when the view was taken.
func (v View) Position() int {
	return v.pos
}

// Bytes returns the borrowed payload. Writes through it modify the element in place.
func (v View) Bytes() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: taken at generation %d", ErrStaleView, v.generation)
	}
	return v.list.slot(v.slot), nil
}

// MustBytes is Bytes for callers that know no mutation happened in between. It panics on a stale view.
func (v View) MustBytes() []byte {
	b, err := v.Bytes()
	if err != nil {
		panic(err)
	}
	return b
}

// Copy returns an owned copy of the payload.
func (v View) Copy() ([]byte, error) {
	b, err := v.Bytes()
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}
