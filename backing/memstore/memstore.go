// Package memstore provides backing stores that keep their data in memory.
// They are useful for tests, demos and as a reference for writing other
// stores.
package memstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sarchlab/wbcache/cache"
)

// Store is a map-based backing store.
type Store struct {
	lock sync.RWMutex
	data map[string][]byte

	numLoads  uint64
	numStores uint64
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put sets the value of id without going through a cache.
func (s *Store) Put(id, value []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.data[string(id)] = append([]byte(nil), value...)
}

// Get returns the value of id without going through a cache.
func (s *Store) Get(id []byte) ([]byte, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.data[string(id)]
	if !ok {
		return nil, false
	}

	return append([]byte(nil), v...), true
}

// IDs returns all the stored identifiers in byte order.
func (s *Store) IDs() [][]byte {
	s.lock.RLock()
	defer s.lock.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	ids := make([][]byte, len(keys))
	for i, k := range keys {
		ids[i] = []byte(k)
	}

	return ids
}

// Load implements cache.BackingStore.
func (s *Store) Load(id, out []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.numLoads++

	v, ok := s.data[string(id)]
	if !ok {
		return fmt.Errorf("%w: %x", cache.ErrNotFound, id)
	}

	if len(v) != len(out) {
		return fmt.Errorf("value of %x is %d bytes, want %d", id, len(v), len(out))
	}

	copy(out, v)

	return nil
}

// Store implements cache.BackingStore.
func (s *Store) Store(id, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.numStores++
	s.data[string(id)] = append([]byte(nil), value...)

	return nil
}

// Compare implements cache.BackingStore.
func (s *Store) Compare(a, b []byte) cache.Ordering {
	return cache.CompareBytes(a, b)
}

// NumLoads returns how many times Load has been called.
func (s *Store) NumLoads() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.numLoads
}

// NumStores returns how many times Store has been called.
func (s *Store) NumStores() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.numStores
}
