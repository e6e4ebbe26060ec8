package slab

import (
	"errors"
	"fmt"
)

var (
	// ErrNilList is returned when a method is called on a nil *List.
	ErrNilList = errors.New("slab: nil list")

	// ErrNilArgument indicates a required value or callback was nil.
	ErrNilArgument = errors.New("slab: nil argument")

	// ErrElementSize indicates a value whose length differs from the list's element size.
	ErrElementSize = errors.New("slab: value length does not match element size")

	// ErrInvalidPosition indicates a logical position outside of the accepted range.
	ErrInvalidPosition = errors.New("slab: invalid position")

	// ErrEmpty is returned by pops and front/back lookups on an empty list.
	ErrEmpty = fmt.Errorf("%w: list is empty", ErrInvalidPosition)

	// ErrNotFound is returned by the find family when no element matches.
	ErrNotFound = errors.New("slab: element not found")

	// ErrAllocation indicates that the arena could not be allocated or grown.
	ErrAllocation = errors.New("slab: allocation failed")

	// ErrCorrupted indicates that the verifier found a structural violation.
	ErrCorrupted = errors.New("slab: structural invariant violated")

	// ErrUninitialized is returned when a zero-value List is used without New.
	ErrUninitialized = errors.New("slab: list is not initialized")

	// ErrDestroyed is returned when a List is used after Destroy.
	ErrDestroyed = errors.New("slab: list is destroyed")

	// ErrStaleView is returned when a View outlived a mutation of its List.
	ErrStaleView = errors.New("slab: view invalidated by a later mutation")

	// ErrInvalidConfig indicates bad construction arguments.
	ErrInvalidConfig = errors.New("slab: invalid configuration")
)
