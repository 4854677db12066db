package cache

import (
	"sync"
)

// SyncCache guards a Cache with a mutex so that it can be shared between
// goroutines. Every call holds the lock for its whole duration, including
// the calls to the backing store.
type SyncCache struct {
	lock  sync.Mutex
	cache *Cache
}

// NewSyncCache wraps c.
func NewSyncCache(c *Cache) *SyncCache {
	return &SyncCache{cache: c}
}

// Name returns the name of the wrapped cache.
func (s *SyncCache) Name() string {
	return s.cache.Name()
}

// Read calls Cache.Read under the lock.
func (s *SyncCache) Read(id, out []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.cache.Read(id, out)
}

// Write calls Cache.Write under the lock.
func (s *SyncCache) Write(id, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.cache.Write(id, value)
}

// Close calls Cache.Close under the lock.
func (s *SyncCache) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.cache.Close()
}

// Lines returns a view of every line.
func (s *SyncCache) Lines() []LineView {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.cache.Lines()
}

// Verify calls Cache.Verify under the lock.
func (s *SyncCache) Verify() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.cache.Verify()
}

// Do runs f with exclusive access to the wrapped cache.
func (s *SyncCache) Do(f func(c *Cache)) {
	s.lock.Lock()
	defer s.lock.Unlock()

	f(s.cache)
}
