package port

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cespare/xxhash/v2"
	"github.com/nobletooth/slablist/pkg/scan"
	"github.com/nobletooth/slablist/pkg/slab"
	"github.com/nobletooth/slablist/pkg/utils"
)

var (
	shardCount = flag.Int("store_shard_count", runtime.NumCPU(),
		"Number of independently locked shards the list names are spread over.")
	initialCapacity = flag.Int("list_initial_capacity", 16,
		"Slots allocated for a new list, the sentinel included; lists double when full.")
	valueMaxBytes = flag.Int("list_value_max_bytes", 64, "Largest value a list element can hold.")
	maxListBytes  = flag.Int64("max_list_bytes", 0,
		"Upper bound on the arena bytes of a single list; 0 means unlimited.")
)

const (
	filterExpectedItems = 1_024
	filterFalsePositive = 0.01
)

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrStoreClosed     = errors.New("store is closed")
)

// listEntry is one named list. The filter remembers every value pushed since the list was created, so a negative
// answer proves a value is absent without walking the list.
type listEntry struct {
	list   *slab.List
	budget *slab.Budget
	filter *bloom.BloomFilter
}

// storeShard guards a subset of the list names.
type storeShard struct {
	mux   sync.Mutex
	lists map[ /*key*/ string]*listEntry
}

// ListStore is the named-list backend used by ports, e.g. Redis.
type ListStore struct {
	shards      []*storeShard
	elementSize int
	closed      atomic.Bool
}

// NewListStore creates an empty store configured from flags.
func NewListStore() (*ListStore, error) {
	elementSize, err := slotSize(*valueMaxBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid --list_value_max_bytes: %w", err)
	}
	if *initialCapacity <= 1 {
		return nil, fmt.Errorf("--list_initial_capacity must be at least 2, got %d", *initialCapacity)
	}
	count := *shardCount
	if count <= 0 {
		utils.RaiseInvariant("backend", "non_positive_shard_count",
			"Invalid shard count has been given to the list store.", "shardCount", count)
		count = 1
	}
	store := &ListStore{shards: make([]*storeShard, count), elementSize: elementSize}
	for i := range store.shards {
		store.shards[i] = &storeShard{lists: make(map[string]*listEntry)}
	}
	return store, nil
}

// getShard hashes `key` to the shard that owns it.
func (ls *ListStore) getShard(key string) *storeShard {
	return ls.shards[xxhash.Sum64String(key)%uint64(len(ls.shards))]
}

// withShard runs `fn` under the lock of the shard owning `key`.
func (ls *ListStore) withShard(key string, fn func(shard *storeShard) error) error {
	if ls.closed.Load() {
		return ErrStoreClosed
	}
	shard := ls.getShard(key)
	shard.mux.Lock()
	defer shard.mux.Unlock()
	return fn(shard)
}

// newEntry creates the list backing `key`.
func (ls *ListStore) newEntry(key string) (*listEntry, error) {
	budget := slab.NewBudget(*maxListBytes)
	list, err := slab.New(ls.elementSize, *initialCapacity,
		slab.WithAllocator(budget),
		slab.WithFormatter(func(payload []byte) string {
			value, err := unpack(payload)
			if err != nil {
				return err.Error()
			}
			return strconv.Quote(string(value))
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to create list '%s': %w", key, err)
	}
	return &listEntry{
		list:   list,
		budget: budget,
		filter: bloom.NewWithEstimates(filterExpectedItems, filterFalsePositive),
	}, nil
}

// dropIfEmpty destroys and forgets the list at `key` once its last element is gone.
func (shard *storeShard) dropIfEmpty(key string, entry *listEntry) {
	if entry.list.Len() > 0 {
		return
	}
	if err := entry.list.Destroy(); err != nil {
		slog.Error("Failed to destroy an empty list.", "key", key, "error", err)
	}
	delete(shard.lists, key)
}

// normalizeIndex maps a Redis index (negative counts from the tail) onto [0, size), reporting whether it fits.
func normalizeIndex(index, size int) (int, bool) {
	if index < 0 {
		index += size
	}
	return index, index >= 0 && index < size
}

// unpackCopy returns an owned copy of the value in `slot`.
func unpackCopy(slot []byte) ([]byte, error) {
	value, err := unpack(slot)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(value), nil
}

// Push adds `values` one by one to the head (`front`) or tail of the list at `key`, creating the list if needed,
// and returns the new length. Either every value is pushed or none is.
func (ls *ListStore) Push(key string, front bool, values ...[]byte) (int, error) {
	slots := make([][]byte, len(values))
	for i, value := range values {
		slot, err := pack(value, ls.elementSize)
		if err != nil {
			return 0, err
		}
		slots[i] = slot
	}

	var length int
	err := ls.withShard(key, func(shard *storeShard) error {
		entry, exists := shard.lists[key]
		if !exists {
			created, err := ls.newEntry(key)
			if err != nil {
				return err
			}
			entry = created
			shard.lists[key] = entry
		}

		for pushed, slot := range slots {
			var err error
			if front {
				err = entry.list.PushFront(slot)
			} else {
				err = entry.list.PushBack(slot)
			}
			if err != nil {
				ls.rollbackPush(entry, front, pushed)
				shard.dropIfEmpty(key, entry)
				return fmt.Errorf("failed to push value %d of %d: %w", pushed+1, len(slots), err)
			}
		}
		for _, value := range values {
			entry.filter.Add(value)
		}
		length = entry.list.Len()
		return nil
	})
	return length, err
}

// rollbackPush removes the first `count` values a failed Push added.
func (ls *ListStore) rollbackPush(entry *listEntry, front bool, count int) {
	out := make([]byte, ls.elementSize)
	for range count {
		var err error
		if front {
			err = entry.list.PopFront(out)
		} else {
			err = entry.list.PopBack(out)
		}
		if err != nil {
			utils.RaiseInvariant("backend", "push_rollback_failed",
				"Failed to undo a partially applied push.", "error", err)
			return
		}
	}
}

// Pop removes up to `count` values from the head (`front`) or tail of the list at `key`.
func (ls *ListStore) Pop(key string, front bool, count int) ([][]byte, error) {
	var popped [][]byte
	err := ls.withShard(key, func(shard *storeShard) error {
		entry, exists := shard.lists[key]
		if !exists {
			return ErrKeyNotFound
		}
		defer shard.dropIfEmpty(key, entry)

		count = min(count, entry.list.Len())
		popped = make([][]byte, 0, count)
		slot := make([]byte, ls.elementSize)
		for range count {
			var err error
			if front {
				err = entry.list.PopFront(slot)
			} else {
				err = entry.list.PopBack(slot)
			}
			if err != nil {
				return err
			}
			value, err := unpackCopy(slot)
			if err != nil {
				return err
			}
			popped = append(popped, value)
		}
		return nil
	})
	return popped, err
}

// Len returns the length of the list at `key`; missing lists are empty.
func (ls *ListStore) Len(key string) (int, error) {
	var length int
	err := ls.withShard(key, func(shard *storeShard) error {
		if entry, exists := shard.lists[key]; exists {
			length = entry.list.Len()
		}
		return nil
	})
	return length, err
}

// Index returns the value at `index` of the list at `key`.
func (ls *ListStore) Index(key string, index int) ([]byte, error) {
	var value []byte
	err := ls.withShard(key, func(shard *storeShard) error {
		entry, exists := shard.lists[key]
		if !exists {
			return ErrKeyNotFound
		}
		pos, ok := normalizeIndex(index, entry.list.Len())
		if !ok {
			return ErrIndexOutOfRange
		}
		view, err := entry.list.Get(pos)
		if err != nil {
			return err
		}
		value, err = unpackCopy(view.MustBytes())
		return err
	})
	return value, err
}

// Set overwrites the value at `index` of the list at `key`.
func (ls *ListStore) Set(key string, index int, value []byte) error {
	slot, err := pack(value, ls.elementSize)
	if err != nil {
		return err
	}
	return ls.withShard(key, func(shard *storeShard) error {
		entry, exists := shard.lists[key]
		if !exists {
			return ErrKeyNotFound
		}
		pos, ok := normalizeIndex(index, entry.list.Len())
		if !ok {
			return ErrIndexOutOfRange
		}
		if err := entry.list.Set(pos, slot); err != nil {
			return err
		}
		entry.filter.Add(value)
		return nil
	})
}

// Insert places `value` right before (or after) the first occurrence of `pivot` and returns the new length.
// It returns -1 when `pivot` is not in the list and 0 when the list doesn't exist.
func (ls *ListStore) Insert(key string, before bool, pivot, value []byte) (int, error) {
	pivotSlot, pivotErr := pack(pivot, ls.elementSize) // An oversized pivot was never pushed.
	slot, err := pack(value, ls.elementSize)
	if err != nil {
		return 0, err
	}

	length := 0
	err = ls.withShard(key, func(shard *storeShard) error {
		entry, exists := shard.lists[key]
		if !exists {
			return nil
		}
		length = -1
		if pivotErr != nil || !entry.filter.Test(pivot) {
			return nil
		}
		match, err := entry.list.Find(pivotSlot, bytes.Compare)
		if errors.Is(err, slab.ErrNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		pos := match.Position()
		if !before {
			pos++
		}
		if err := entry.list.Insert(pos, slot); err != nil {
			return err
		}
		entry.filter.Add(value)
		length = entry.list.Len()
		return nil
	})
	return length, err
}

// Range returns the values between `start` and `stop`, both inclusive, of the list at `key`.
// Negative indices count from the tail and out-of-range bounds are clamped like Redis LRANGE does.
func (ls *ListStore) Range(key string, start, stop int) ([][]byte, error) {
	values := make([][]byte, 0)
	err := ls.withShard(key, func(shard *storeShard) error {
		entry, exists := shard.lists[key]
		if !exists {
			return nil
		}
		size := entry.list.Len()
		if start < 0 {
			start = max(start+size, 0)
		}
		if stop < 0 {
			stop += size
		}
		stop = min(stop, size-1)
		if start > stop {
			return nil
		}

		// Walk from the nearer end so tail ranges don't cross the whole list.
		backward := size-1-stop < start
		elements := entry.list.All()
		if backward {
			elements = entry.list.Backward()
		}
		for pos, slot := range elements {
			if (backward && pos < start) || (!backward && pos > stop) {
				break
			}
			if pos < start || pos > stop {
				continue
			}
			value, err := unpackCopy(slot)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		if backward {
			slices.Reverse(values)
		}
		return nil
	})
	return values, err
}

// Positions returns up to `count` positions of `value` in the list at `key`, head to tail; count 0 means all.
func (ls *ListStore) Positions(key string, value []byte, count int) ([]int, error) {
	positions := make([]int, 0)
	slot, err := pack(value, ls.elementSize)
	if err != nil {
		return positions, nil
	}
	err = ls.withShard(key, func(shard *storeShard) error {
		entry, exists := shard.lists[key]
		if !exists || !entry.filter.Test(value) {
			return nil
		}
		for pos, candidate := range entry.list.All() {
			if bytes.Equal(candidate, slot) {
				positions = append(positions, pos)
				if count > 0 && len(positions) == count {
					break
				}
			}
		}
		return nil
	})
	return positions, err
}

// Remove deletes occurrences of `value` from the list at `key`: the first `count` ones for count > 0, the last
// -count ones for count < 0 and all of them for count == 0. It returns how many were removed.
func (ls *ListStore) Remove(key string, count int, value []byte) (int, error) {
	slot, err := pack(value, ls.elementSize)
	if err != nil {
		return 0, nil
	}
	removed := 0
	err = ls.withShard(key, func(shard *storeShard) error {
		entry, exists := shard.lists[key]
		if !exists || !entry.filter.Test(value) {
			return nil
		}
		defer shard.dropIfEmpty(key, entry)

		var matches []int
		elements := entry.list.All()
		if count < 0 {
			elements = entry.list.Backward()
		}
		limit := count
		if limit < 0 {
			limit = -limit
		}
		for pos, candidate := range elements {
			if bytes.Equal(candidate, slot) {
				matches = append(matches, pos)
				if limit > 0 && len(matches) == limit {
					break
				}
			}
		}

		// Erase back to front so earlier positions stay put.
		slices.Sort(matches)
		for i := len(matches) - 1; i >= 0; i-- {
			if err := entry.list.Erase(matches[i], nil); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Delete removes the lists at `keys` and returns how many existed.
func (ls *ListStore) Delete(keys ...string) (int, error) {
	deleted := 0
	for _, key := range keys {
		err := ls.withShard(key, func(shard *storeShard) error {
			entry, exists := shard.lists[key]
			if !exists {
				return nil
			}
			delete(shard.lists, key)
			deleted++
			return entry.list.Destroy()
		})
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// Exists counts how many of `keys` name a list; repeated keys count repeatedly.
func (ls *ListStore) Exists(keys ...string) (int, error) {
	found := 0
	for _, key := range keys {
		err := ls.withShard(key, func(shard *storeShard) error {
			if _, exists := shard.lists[key]; exists {
				found++
			}
			return nil
		})
		if err != nil {
			return found, err
		}
	}
	return found, nil
}

// names yields a snapshot of every list name, shard by shard.
func (ls *ListStore) names() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, shard := range ls.shards {
			shard.mux.Lock()
			keys := make([]string, 0, len(shard.lists))
			for key := range shard.lists {
				keys = append(keys, key)
			}
			shard.mux.Unlock()
			for _, key := range keys {
				if !yield(key) {
					return
				}
			}
		}
	}
}

// Keys returns the sorted list names matching the glob `pattern`.
func (ls *ListStore) Keys(pattern string) ([]string, error) {
	if ls.closed.Load() {
		return nil, ErrStoreClosed
	}
	keys := slices.Collect(scan.MatchGlob(pattern, ls.names()))
	slices.Sort(keys)
	return keys, nil
}

// Dump writes the slab layout of the list at `key` for debugging.
func (ls *ListStore) Dump(key string) (string, error) {
	var out bytes.Buffer
	err := ls.withShard(key, func(shard *storeShard) error {
		entry, exists := shard.lists[key]
		if !exists {
			return ErrKeyNotFound
		}
		fmt.Fprintf(&out, "budget used=%d\n", entry.budget.Used())
		return entry.list.Dump(&out)
	})
	return out.String(), err
}

// Close destroys every list; later calls fail with ErrStoreClosed.
func (ls *ListStore) Close() error {
	if ls.closed.Swap(true) {
		return ErrStoreClosed
	}
	var errs []error
	for _, shard := range ls.shards {
		shard.mux.Lock()
		for key, entry := range shard.lists {
			if err := entry.list.Destroy(); err != nil {
				errs = append(errs, fmt.Errorf("failed to destroy list '%s': %w", key, err))
			}
		}
		clear(shard.lists)
		shard.mux.Unlock()
	}
	return errors.Join(errs...)
}
