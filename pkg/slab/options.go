package slab

// Option configures a List at construction time.
type Option func(*List)

// WithDestructor sets a callback run once on every payload that leaves the list without being handed back to the
// caller: erase/pop without an output buffer, Set overwrites, Clear and Destroy.
// The payload slice is only valid for the duration of the call.
func WithDestructor(destructor func(payload []byte)) Option {
	return func(l *List) {
		l.destructor = destructor
	}
}

// WithFormatter sets how Dump renders a payload. A nil formatter falls back to hex plus an xxhash fingerprint.
func WithFormatter(formatter func(payload []byte) string) Option {
	return func(l *List) {
		l.formatter = formatter
	}
}

// WithAllocator gates arena allocations through the given Allocator. Nil means unlimited.
func WithAllocator(allocator Allocator) Option {
	return func(l *List) {
		if allocator == nil {
			allocator = unlimited{}
		}
		l.allocator = allocator
	}
}

// WithVerification toggles structural verification before and after every mutating operation.
// Defaults to the --verify_list_operations flag. Verification is O(capacity) per operation.
func WithVerification(enabled bool) Option {
	return func(l *List) {
		l.verify = enabled
	}
}
