package quota

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dgraph-io/badger/v3"

	"github.com/penlight/vitalsum/logging"
)

// BadgerConfig configures the persistent counter store.
type BadgerConfig struct {
	Path       string        `json:"path"`
	InMemory   bool          `json:"in_memory"`
	GCInterval time.Duration `json:"gc_interval"`
}

// BadgerStore is a BadgerDB-backed CounterStore. Counters survive
// process restarts, which keeps rate accounting honest across app
// relaunches on the device.
type BadgerStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
	stopGC chan struct{}
}

// NewBadgerStore opens a persistent counter store.
func NewBadgerStore(config BadgerConfig) (*BadgerStore, error) {
	if config.Path == "" && !config.InMemory {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		config.Path = filepath.Join(homeDir, ".cache", "vitalsum", "quota")
	}
	if config.GCInterval <= 0 {
		config.GCInterval = 5 * time.Minute
	}

	opts := badger.DefaultOptions(config.Path).
		WithInMemory(config.InMemory).
		WithLogger(nil)
	if config.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	} else {
		if err := os.MkdirAll(config.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create quota store directory: %w", err)
		}
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open quota store: %w", err)
	}

	store := &BadgerStore{
		db:     db,
		stopGC: make(chan struct{}),
	}
	if !config.InMemory {
		go store.gcLoop(config.GCInterval)
	}
	return store, nil
}

func (s *BadgerStore) GetCount(key string) (int64, error) {
	var v int64
	err := s.get(key, &v)
	return v, err
}

func (s *BadgerStore) Increment(key string, delta int64) (int64, error) {
	var v int64
	err := s.update(key, &v, func() { v += delta })
	return v, err
}

func (s *BadgerStore) GetSpend(key string) (float64, error) {
	var v float64
	err := s.get(key, &v)
	return v, err
}

func (s *BadgerStore) AddSpend(key string, amount float64) (float64, error) {
	var v float64
	err := s.update(key, &v, func() { v += amount })
	return v, err
}

func (s *BadgerStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("quota store is closed")
	}
	return s.db.DropAll()
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stopGC)
	return s.db.Close()
}

// get reads and decodes the value at key into v; missing keys leave v
// at its zero value.
func (s *BadgerStore) get(key string, v interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("quota store is closed")
	}

	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return sonic.Unmarshal(val, v)
		})
	})
}

// update applies mutate to the decoded value at key inside one
// transaction, so concurrent increments never lose updates.
func (s *BadgerStore) update(key string, v interface{}, mutate func()) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("quota store is closed")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err == nil {
			if verr := item.Value(func(val []byte) error {
				return sonic.Unmarshal(val, v)
			}); verr != nil {
				return verr
			}
		}

		mutate()

		encoded, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		return txn.Set([]byte(key), encoded)
	})
}

func (s *BadgerStore) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			if err := s.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				logging.LogDebugf("quota store GC: %v", err)
			}
		}
	}
}
