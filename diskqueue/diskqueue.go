// Package diskqueue implements a durable FIFO queue over storage/kvstore:
// each item is keyed by a monotonically increasing ID rendered as a
// 64-character zero-padded binary string, which keeps insertion order
// equal to lexicographic key order under the underlying store's sorted
// iteration. When the queue reaches its configured capacity, the oldest
// item is evicted to make room for the new one.
package diskqueue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/RyanW02/wineventchain/log"
	"github.com/RyanW02/wineventchain/storage/kvstore"
)

const keyWidth = 64

// DiskQueue is a generic FIFO queue of items of type T, durable across
// process restarts, backed by a named subtree of a kvstore.Store.
type DiskQueue[T any] struct {
	store   *kvstore.Store
	subtree string
	maxSize int
	logger  *log.Logger

	// mu serializes Push, so its count/evict/insert sequence is atomic with
	// respect to other pushes.
	mu sync.Mutex
}

// New returns a DiskQueue over subtree, evicting the oldest item before a
// push that would take it past maxSize items. maxSize <= 0 means unbounded.
func New[T any](store *kvstore.Store, subtree string, maxSize int) *DiskQueue[T] {
	return &DiskQueue[T]{
		store:   store,
		subtree: subtree,
		maxSize: maxSize,
		logger:  log.NewModuleLogger(log.ModuleDiskQueue).With("subtree", subtree),
	}
}

func encodeKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%0*b", keyWidth, id))
}

func decodeKey(key []byte) (uint64, error) {
	return strconv.ParseUint(string(key), 2, 64)
}

// Push appends item to the tail of the queue, evicting the oldest item
// first if the queue is already at capacity, and returns the new item's
// id.
func (q *DiskQueue[T]) Push(item T) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize > 0 {
		count, err := q.store.Count(q.subtree)
		if err != nil {
			return 0, fmt.Errorf("diskqueue: counting %s: %w", q.subtree, err)
		}
		if count >= q.maxSize {
			if err := q.evictOldest(); err != nil {
				return 0, err
			}
		}
	}

	id, err := q.store.NextID(q.subtree)
	if err != nil {
		return 0, err
	}

	encoded, err := json.Marshal(item)
	if err != nil {
		return 0, fmt.Errorf("diskqueue: marshaling item: %w", err)
	}

	if err := q.store.Put(q.subtree, encodeKey(id), encoded); err != nil {
		return 0, fmt.Errorf("diskqueue: pushing item: %w", err)
	}

	q.logger.Debug("pushed item", "id", id)
	return id, nil
}

func (q *DiskQueue[T]) evictOldest() error {
	entries, err := q.store.Iter(q.subtree)
	if err != nil {
		return fmt.Errorf("diskqueue: scanning for eviction: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	q.logger.Warn("queue at capacity, evicting oldest item", "key", string(entries[0].Key))
	return q.store.Delete(q.subtree, entries[0].Key)
}

// Get returns the item stored under id, or (zero, false, nil) if absent.
func (q *DiskQueue[T]) Get(id uint64) (T, bool, error) {
	var item T
	raw, err := q.store.Get(q.subtree, encodeKey(id))
	if err != nil {
		return item, false, err
	}
	if raw == nil {
		return item, false, nil
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, false, fmt.Errorf("diskqueue: unmarshaling item %d: %w", id, err)
	}
	return item, true, nil
}

// Update overwrites the item stored under id. It is the caller's
// responsibility to ensure id still exists; Update does not itself check.
func (q *DiskQueue[T]) Update(id uint64, item T) error {
	encoded, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("diskqueue: marshaling item: %w", err)
	}
	return q.store.Put(q.subtree, encodeKey(id), encoded)
}

// Remove deletes the item stored under id. Removing a non-existent id is
// not an error.
func (q *DiskQueue[T]) Remove(id uint64) error {
	return q.store.Delete(q.subtree, encodeKey(id))
}

// Item pairs a queue entry with the id it was stored under.
type Item[T any] struct {
	Id   uint64
	Item T
}

// IterResult is one entry of an Iter scan: either a decoded Item, or an
// error specific to that single entry. A malformed entry never prevents
// the rest of the queue from being returned.
type IterResult[T any] struct {
	Item Item[T]
	Err  error
}

// Iter returns every item currently in the queue in FIFO (insertion) order.
// It is a point-in-time snapshot; concurrent pushes/removals during
// iteration are not reflected in the returned slice. A decode failure on
// one entry (a bad key or unmarshalable value) is reported against that
// entry alone, via IterResult.Err, so a single malformed entry cannot
// block callers from seeing every other entry.
func (q *DiskQueue[T]) Iter() ([]IterResult[T], error) {
	entries, err := q.store.Iter(q.subtree)
	if err != nil {
		return nil, fmt.Errorf("diskqueue: iterating %s: %w", q.subtree, err)
	}

	results := make([]IterResult[T], 0, len(entries))
	for _, e := range entries {
		id, err := decodeKey(e.Key)
		if err != nil {
			results = append(results, IterResult[T]{Err: fmt.Errorf("diskqueue: decoding key %q: %w", e.Key, err)})
			continue
		}
		var item T
		if err := json.Unmarshal(e.Value, &item); err != nil {
			results = append(results, IterResult[T]{Err: fmt.Errorf("diskqueue: unmarshaling item %d: %w", id, err)})
			continue
		}
		results = append(results, IterResult[T]{Item: Item[T]{Id: id, Item: item}})
	}
	return results, nil
}

// Len returns the number of items currently queued.
func (q *DiskQueue[T]) Len() (int, error) {
	return q.store.Count(q.subtree)
}
