// Slab lists hold fixed-size elements while Redis values vary in length, so every value is packed into one slot:
// a 2-byte big-endian length, the value bytes, then zero padding up to the slot size.
// Equal values always pack to identical slots, which lets lookups compare packed slots byte for byte.

package port

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// lengthPrefixBytes is the size of the length header in front of every packed value.
const lengthPrefixBytes = 2

var (
	ErrValueTooLarge = errors.New("value is too large")
	ErrMalformedSlot = errors.New("malformed slot")
)

// slotSize returns the element size of a list holding values up to `maxValueBytes` long.
func slotSize(maxValueBytes int) (int, error) {
	if maxValueBytes <= 0 || maxValueBytes > math.MaxUint16 {
		return 0, fmt.Errorf("value size limit %d must be in [1, %d]", maxValueBytes, math.MaxUint16)
	}
	return lengthPrefixBytes + maxValueBytes, nil
}

// packInto writes `value` into `slot`, zeroing the padding.
func packInto(slot, value []byte) error {
	if len(value) > len(slot)-lengthPrefixBytes {
		return fmt.Errorf("%w: %d bytes, at most %d allowed", ErrValueTooLarge, len(value), len(slot)-lengthPrefixBytes)
	}
	binary.BigEndian.PutUint16(slot, uint16(len(value)))
	n := copy(slot[lengthPrefixBytes:], value)
	clear(slot[lengthPrefixBytes+n:])
	return nil
}

// pack returns a new `size`-byte slot holding `value`.
func pack(value []byte, size int) ([]byte, error) {
	slot := make([]byte, size)
	if err := packInto(slot, value); err != nil {
		return nil, err
	}
	return slot, nil
}

// unpack returns the value stored in `slot`. The result aliases the slot.
func unpack(slot []byte) ([]byte, error) {
	if len(slot) < lengthPrefixBytes {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the length prefix", ErrMalformedSlot, len(slot))
	}
	length := int(binary.BigEndian.Uint16(slot))
	if length > len(slot)-lengthPrefixBytes {
		return nil, fmt.Errorf("%w: length %d overflows a %d-byte slot", ErrMalformedSlot, length, len(slot))
	}
	return slot[lengthPrefixBytes : lengthPrefixBytes+length], nil
}
