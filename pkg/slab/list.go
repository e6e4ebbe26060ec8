// Package slab implements a cache-friendly doubly linked list over a single index-addressed arena.
//
// The arena is split at all times into two circular doubly linked cycles sharing one node buffer:
//   - The busy cycle is the logical list. It is anchored at slot 0, the sentinel, which stands both before the
//     first element and after the last one and never holds a payload.
//   - The free cycle threads every spare slot so that acquiring and releasing a slot costs O(1).
//
// Positional operations walk the busy cycle from whichever end is closer, so they cost O(min(pos, size-pos)).
// When no spare slot is left the arena doubles; slot indices survive the move, only capacity changes.
//
// A List is not safe for concurrent use. Views returned by Get/Front/Back/Find are borrowed and become stale on
// the next mutation of the list.
package slab

import (
	"flag"
	"fmt"
	"iter"
	"log/slog"

	"github.com/nobletooth/slablist/pkg/utils"
)

var verifyOperations = flag.Bool("verify_list_operations", false,
	"Verify both slab list cycles before and after every mutating operation; O(capacity) per call.")

// state is the List lifecycle.
type state uint8

const (
	stateUninitialized state = iota // The zero value; New was never called.
	stateReady
	stateDestroyed
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateReady:
		return "ready"
	case stateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// List is a positional doubly linked list of fixed-size byte elements stored in a slab arena.
type List struct {
	arena
	capacity int // Total slots, sentinel included.
	size     int // Logical elements, sentinel excluded.
	free     int // One free-cycle member, or capacity when the free cycle is empty.

	destructor func(payload []byte)
	formatter  func(payload []byte) string
	verify     bool

	generation uint64 // Bumped on every mutation; invalidates views.
	state      state
}

// New creates a list of `elementSize`-byte elements with room for `capacity` slots, the sentinel included.
func New(elementSize, capacity int, opts ...Option) (*List, error) {
	if elementSize <= 0 {
		return nil, fmt.Errorf("%w: element size %d must be positive", ErrInvalidConfig, elementSize)
	}
	if capacity <= 1 {
		return nil, fmt.Errorf("%w: capacity %d must leave room beside the sentinel", ErrInvalidConfig, capacity)
	}

	l := &List{verify: *verifyOperations}
	l.elementSize = elementSize
	l.allocator = unlimited{}
	for _, opt := range opts {
		opt(l)
	}

	nodes, payload, err := l.stage(0, capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate arena: %w", err)
	}
	l.nodes, l.payload = nodes, payload
	l.capacity = capacity
	l.nodes[0] = node{prev: 0, next: 0, busy: true}
	l.free = 1
	l.threadFreeCycle(1, capacity)
	l.state = stateReady
	return l, nil
}

// ready checks the lifecycle state only.
func (l *List) ready() error {
	if l == nil {
		return ErrNilList
	}
	switch l.state {
	case stateReady:
		return nil
	case stateDestroyed:
		return ErrDestroyed
	default:
		return ErrUninitialized
	}
}

// begin guards the entry of a mutating operation.
func (l *List) begin(op string) error {
	if err := l.ready(); err != nil {
		return err
	}
	if l.verify {
		if violations := l.Verify(); violations != 0 {
			return l.corrupted(op, "before", violations)
		}
	}
	return nil
}

// commit closes a successful mutation: views die and the structure is rechecked when verification is on.
func (l *List) commit(op string) error {
	l.generation++
	if l.verify {
		if violations := l.Verify(); violations != 0 {
			return l.fail(op, l.corrupted(op, "after", violations))
		}
	}
	return nil
}

// fail records a failed operation and passes the error through.
func (l *List) fail(op string, err error) error {
	operationFailures.WithLabelValues(op, failureReason(err)).Inc()
	return err
}

// corrupted reports a verifier failure with a field-by-field state dump.
func (l *List) corrupted(op, phase string, violations Violation) error {
	args := append([]any{"operation", op, "phase", phase}, l.logAttrs(violations)...)
	utils.RaiseInvariant("slab", "structure_violated", "Slab list failed structural verification.", args...)
	return fmt.Errorf("%w: %s (%s): %s", ErrCorrupted, op, phase, violations)
}

// logAttrs returns the list header as slog key-value pairs.
func (l *List) logAttrs(violations Violation) []any {
	return []any{
		"state", l.state.String(),
		"capacity", l.capacity,
		"size", l.size,
		"free", l.free,
		"elementSize", l.elementSize,
		"generation", l.generation,
		"violations", violations.String(),
	}
}

// checkValue validates an element value against the list's element size.
func (l *List) checkValue(value []byte) error {
	if value == nil {
		return fmt.Errorf("%w: value", ErrNilArgument)
	}
	if len(value) != l.elementSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrElementSize, len(value), l.elementSize)
	}
	return nil
}

// Len returns the number of elements; zero for a nil, uninitialized or destroyed list.
func (l *List) Len() int {
	if l.ready() != nil {
		return 0
	}
	return l.size
}

// Cap returns the number of slots in the arena, the sentinel included.
func (l *List) Cap() int {
	if l.ready() != nil {
		return 0
	}
	return l.capacity
}

// ElementSize returns the byte size of one element.
func (l *List) ElementSize() int {
	if l.ready() != nil {
		return 0
	}
	return l.elementSize
}

// Insert places a copy of `value` at logical position `pos`, shifting the element previously there (if any)
// one position back. `pos == Len()` appends. The list is left untouched on any error.
func (l *List) Insert(pos int, value []byte) error {
	const op = "insert"
	if err := l.begin(op); err != nil {
		return l.fail(op, err)
	}
	if pos < 0 || pos > l.size {
		return l.fail(op, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidPosition, pos, l.size))
	}
	if err := l.checkValue(value); err != nil {
		return l.fail(op, err)
	}

	successor := l.resolve(pos) // Indices are stable across growth, so resolving first is safe.
	slot, err := l.acquire()
	if err != nil {
		return l.fail(op, err)
	}
	copy(l.slot(slot), value)
	l.linkBefore(slot, successor)
	l.size++
	return l.commit(op)
}

// PushFront inserts `value` before the first element.
func (l *List) PushFront(value []byte) error {
	return l.Insert(0, value)
}

// PushBack appends `value` after the last element.
func (l *List) PushBack(value []byte) error {
	if err := l.ready(); err != nil {
		return l.fail("insert", err)
	}
	return l.Insert(l.size, value)
}

// Erase removes the element at `pos`. When `out` is non-nil it must be ElementSize() long; the payload is copied
// into it and the destructor is skipped since the caller now owns the value. Otherwise the destructor runs.
func (l *List) Erase(pos int, out []byte) error {
	const op = "erase"
	if err := l.begin(op); err != nil {
		return l.fail(op, err)
	}
	if pos < 0 || pos >= l.size {
		if l.size == 0 {
			return l.fail(op, ErrEmpty)
		}
		return l.fail(op, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPosition, pos, l.size))
	}
	if out != nil && len(out) != l.elementSize {
		return l.fail(op, fmt.Errorf("%w: output buffer has %d bytes, want %d", ErrElementSize, len(out), l.elementSize))
	}

	slot := l.resolve(pos)
	if out != nil {
		copy(out, l.slot(slot))
	}
	l.unlink(slot)
	l.size--
	l.release(slot, out == nil)
	return l.commit(op)
}

// PopFront removes the first element; see Erase for `out`.
func (l *List) PopFront(out []byte) error {
	return l.Erase(0, out)
}

// PopBack removes the last element; see Erase for `out`.
func (l *List) PopBack(out []byte) error {
	if err := l.ready(); err != nil {
		return l.fail("erase", err)
	}
	if l.size == 0 {
		return l.fail("erase", ErrEmpty)
	}
	return l.Erase(l.size-1, out)
}

// Set overwrites the element at `pos` in place. The destructor runs on the old payload.
func (l *List) Set(pos int, value []byte) error {
	const op = "set"
	if err := l.begin(op); err != nil {
		return l.fail(op, err)
	}
	if pos < 0 || pos >= l.size {
		return l.fail(op, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPosition, pos, l.size))
	}
	if err := l.checkValue(value); err != nil {
		return l.fail(op, err)
	}
	payload := l.slot(l.resolve(pos))
	if l.destructor != nil {
		l.destructor(payload)
	}
	copy(payload, value)
	return l.commit(op)
}

// Get returns a borrowed view of the element at `pos`.
func (l *List) Get(pos int) (View, error) {
	if err := l.ready(); err != nil {
		return View{}, err
	}
	if pos < 0 || pos >= l.size {
		return View{}, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPosition, pos, l.size)
	}
	return l.view(l.resolve(pos), pos), nil
}

// Front returns a borrowed view of the first element.
func (l *List) Front() (View, error) {
	if err := l.ready(); err != nil {
		return View{}, err
	}
	if l.size == 0 {
		return View{}, ErrEmpty
	}
	return l.view(l.nodes[0].next, 0), nil
}

// Back returns a borrowed view of the last element.
func (l *List) Back() (View, error) {
	if err := l.ready(); err != nil {
		return View{}, err
	}
	if l.size == 0 {
		return View{}, ErrEmpty
	}
	return l.view(l.nodes[0].prev, l.size-1), nil
}

// Find returns a view of the first element `e` for which `compare(e, target) == 0`. It follows the busy cycle from
// the first element until it reaches the sentinel again.
func (l *List) Find(target []byte, compare utils.CompareFn[[]byte]) (View, error) {
	if err := l.ready(); err != nil {
		return View{}, err
	}
	if target == nil || compare == nil {
		return View{}, fmt.Errorf("%w: target and comparator are required", ErrNilArgument)
	}
	// The step bound keeps a corrupted cycle from spinning forever.
	for slot, pos := l.nodes[0].next, 0; slot != 0 && pos < l.capacity; slot, pos = l.nodes[slot].next, pos+1 {
		if compare(l.slot(slot), target) == 0 {
			return l.view(slot, pos), nil
		}
	}
	return View{}, ErrNotFound
}

// FindThrough returns a view of the first element equal to `target` under `equal`. Unlike Find it visits strictly
// Len() elements and never inspects the sentinel.
func (l *List) FindThrough(target []byte, equal utils.EqualFn[[]byte]) (View, error) {
	if err := l.ready(); err != nil {
		return View{}, err
	}
	if target == nil || equal == nil {
		return View{}, fmt.Errorf("%w: target and predicate are required", ErrNilArgument)
	}
	slot := l.nodes[0].next
	for pos := range l.size {
		if equal(l.slot(slot), target) {
			return l.view(slot, pos), nil
		}
		slot = l.nodes[slot].next
	}
	return View{}, ErrNotFound
}

// All iterates positions and borrowed payloads front to back. Iteration stops if the list is mutated meanwhile.
func (l *List) All() iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		if l.ready() != nil {
			return
		}
		generation := l.generation
		for slot, pos := l.nodes[0].next, 0; slot != 0 && pos < l.size; slot, pos = l.nodes[slot].next, pos+1 {
			if !yield(pos, l.slot(slot)) || l.generation != generation {
				return
			}
		}
	}
}

// Backward iterates positions and borrowed payloads back to front.
func (l *List) Backward() iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		if l.ready() != nil {
			return
		}
		generation := l.generation
		for slot, pos := l.nodes[0].prev, l.size-1; slot != 0 && pos >= 0; slot, pos = l.nodes[slot].prev, pos-1 {
			if !yield(pos, l.slot(slot)) || l.generation != generation {
				return
			}
		}
	}
}

// Clear removes every element, running the destructor on each. Capacity is kept.
func (l *List) Clear() error {
	const op = "clear"
	if err := l.begin(op); err != nil {
		return l.fail(op, err)
	}
	for l.size > 0 {
		slot := l.nodes[0].next
		l.unlink(slot)
		l.size--
		l.release(slot, true)
	}
	return l.commit(op)
}

// Destroy runs the destructor over every element front to back, releases the arena and poisons the list:
// every later call fails with ErrDestroyed.
func (l *List) Destroy() error {
	const op = "destroy"
	if err := l.ready(); err != nil {
		return l.fail(op, err)
	}
	if l.destructor != nil {
		for slot, pos := l.nodes[0].next, 0; slot != 0 && pos < l.size; slot, pos = l.nodes[slot].next, pos+1 {
			l.destructor(l.slot(slot))
		}
	}
	l.drop()
	l.capacity, l.size, l.free = 0, 0, 0
	l.generation++
	l.state = stateDestroyed
	slog.Debug("Slab list destroyed.", "generation", l.generation)
	return nil
}
