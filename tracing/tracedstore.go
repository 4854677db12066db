package tracing

import (
	"encoding/hex"

	"github.com/rs/xid"

	"github.com/sarchlab/wbcache/cache"
)

// TracedStore wraps a backing store and reports every Load and Store call to
// its tracers. Compare calls are not traced.
type TracedStore struct {
	cache.BackingStore

	tracers []Tracer
}

// NewTracedStore wraps store.
func NewTracedStore(store cache.BackingStore, tracers ...Tracer) *TracedStore {
	return &TracedStore{
		BackingStore: store,
		tracers:      tracers,
	}
}

// AddTracer adds a tracer that is notified about the following calls.
func (s *TracedStore) AddTracer(t Tracer) {
	s.tracers = append(s.tracers, t)
}

// Load calls Load of the wrapped store.
func (s *TracedStore) Load(id, out []byte) error {
	task := s.start(KindLoad, id)
	defer s.end(task)

	return s.BackingStore.Load(id, out)
}

// Store calls Store of the wrapped store.
func (s *TracedStore) Store(id, value []byte) error {
	task := s.start(KindStore, id)
	defer s.end(task)

	return s.BackingStore.Store(id, value)
}

func (s *TracedStore) start(kind string, id []byte) Task {
	task := Task{
		ID:   xid.New().String(),
		Kind: kind,
		What: hex.EncodeToString(id),
	}

	for _, t := range s.tracers {
		t.StartTask(task)
	}

	return task
}

func (s *TracedStore) end(task Task) {
	for _, t := range s.tracers {
		t.EndTask(task)
	}
}
