package utils

// CompareFn defines a three-way comparison for values of type T.
// It must return a negative value if x < y, 0 if x == y, and a positive value if x > y.
type CompareFn[T any] func(x, y T) int

// EqualFn reports whether x and y are equal.
type EqualFn[T any] func(x, y T) bool

// EqualFromCompare derives an EqualFn from a CompareFn.
func EqualFromCompare[T any](compare CompareFn[T]) EqualFn[T] {
	return func(x, y T) bool { return compare(x, y) == 0 }
}
