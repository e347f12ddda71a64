package quota

import (
	"sync"
)

// CounterStore is the persistence port for rate counters and budget
// spend. Implementations must be safe for concurrent use.
type CounterStore interface {
	// GetCount returns the counter at key, zero if absent.
	GetCount(key string) (int64, error)
	// Increment adds delta to the counter at key and returns the new value.
	Increment(key string, delta int64) (int64, error)
	// GetSpend returns the monetary amount at key, zero if absent.
	GetSpend(key string) (float64, error)
	// AddSpend adds amount to the value at key and returns the new value.
	AddSpend(key string, amount float64) (float64, error)
	// Reset removes all counters and spend values.
	Reset() error
	// Close releases underlying resources.
	Close() error
}

// MemoryStore is an in-process CounterStore used for tests and for
// running without persistence.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int64
	spend  map[string]float64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counts: make(map[string]int64),
		spend:  make(map[string]float64),
	}
}

func (m *MemoryStore) GetCount(key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

func (m *MemoryStore) Increment(key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key] += delta
	return m.counts[key], nil
}

func (m *MemoryStore) GetSpend(key string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spend[key], nil
}

func (m *MemoryStore) AddSpend(key string, amount float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spend[key] += amount
	return m.spend[key], nil
}

func (m *MemoryStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[string]int64)
	m.spend = make(map[string]float64)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
