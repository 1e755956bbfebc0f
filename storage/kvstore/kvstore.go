// Package kvstore provides the single durable key-value store backing every
// other on-disk structure in this agent (the disk queues and the watermark
// store). It is a thin wrapper over badger, following the same
// open/transaction/close shape as the badger-backed database engine this
// package is modeled on, adapted to expose byte-range prefix scans (named
// subtrees) and a monotonic per-subtree ID generator instead of the
// Ethereum-style table/batch abstraction it was lifted from.
package kvstore

import (
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/RyanW02/wineventchain/log"
)

const (
	gcThreshold   = int64(1 << 30) // 1GB
	gcTickerEvery = 1 * time.Minute
)

// Store is a durable, lexicographically ordered key-value store supporting
// named subtrees (key prefixes) and monotonic ID generation per subtree.
type Store struct {
	dir string
	db  *badger.DB

	gcTicker *time.Ticker
	closeCh  chan struct{}

	logger *log.Logger
}

// Open opens (creating if necessary) a badger store rooted at dir.
func Open(dir string) (*Store, error) {
	logger := log.NewModuleLogger(log.ModuleKVStore).With("dir", dir)

	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, fmt.Errorf("kvstore: %s is not a directory", dir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("kvstore: creating %s: %w", dir, err)
		}
	} else {
		return nil, fmt.Errorf("kvstore: stat %s: %w", dir, err)
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kvstore: opening badger at %s: %w", dir, err)
	}

	s := &Store{
		dir:      dir,
		db:       db,
		gcTicker: time.NewTicker(gcTickerEvery),
		closeCh:  make(chan struct{}),
		logger:   logger,
	}
	go s.runValueLogGC()

	return s, nil
}

func (s *Store) runValueLogGC() {
	for {
		select {
		case <-s.closeCh:
			return
		case <-s.gcTicker.C:
			lsm, vlog := s.db.Size()
			if vlog < gcThreshold {
				continue
			}
			if err := s.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				s.logger.Warn("value log gc failed", "err", err, "lsmSize", lsm, "vlogSize", vlog)
			}
		}
	}
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	close(s.closeCh)
	s.gcTicker.Stop()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("kvstore: close: %w", err)
	}
	return nil
}

// Put writes key to the given subtree.
func (s *Store) Put(subtree string, key, value []byte) error {
	fullKey := prefixKey(subtree, key)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(fullKey, value)
	})
}

// Get reads key from the given subtree. Returns (nil, nil) if not found.
func (s *Store) Get(subtree string, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(prefixKey(subtree, key))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			value = append([]byte(nil), v...)
			return nil
		})
	})
	return value, err
}

// Has reports whether key exists in the given subtree.
func (s *Store) Has(subtree string, key []byte) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(prefixKey(subtree, key))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Delete removes key from the given subtree. It is not an error to delete a
// key that does not exist.
func (s *Store) Delete(subtree string, key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(prefixKey(subtree, key))
	})
}

// Entry is a single key/value pair returned by Iter, with the subtree prefix
// already stripped from Key.
type Entry struct {
	Key   []byte
	Value []byte
}

// Iter returns every entry in subtree in ascending key order. It takes a
// point-in-time snapshot via a read transaction, so concurrent writers
// during iteration do not invalidate it.
func (s *Store) Iter(subtree string) ([]Entry, error) {
	prefix := []byte(subtree + "\x00")
	var entries []Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()[len(prefix):]...)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries = append(entries, Entry{Key: key, Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of entries currently stored in subtree.
func (s *Store) Count(subtree string) (int, error) {
	entries, err := s.Iter(subtree)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// NextID returns the next value from a monotonic, persistent sequence scoped
// to subtree, analogous to sled's generate_id used by the originating queue
// implementation this package's ID scheme is grounded on.
func (s *Store) NextID(subtree string) (uint64, error) {
	seq, err := s.db.GetSequence([]byte("seq\x00"+subtree), 100)
	if err != nil {
		return 0, fmt.Errorf("kvstore: acquiring sequence for %s: %w", subtree, err)
	}
	defer seq.Release()
	return seq.Next()
}

func prefixKey(subtree string, key []byte) []byte {
	full := make([]byte, 0, len(subtree)+1+len(key))
	full = append(full, subtree...)
	full = append(full, 0)
	full = append(full, key...)
	return full
}
