package cache

import (
	"encoding/binary"
)

type storeCall struct {
	id    string
	value uint32
}

// fakeStore is a map-based backing store that records the calls it receives.
type fakeStore struct {
	data     map[string][]byte
	loads    []string
	stores   []storeCall
	storeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) put(id string, value uint32) {
	s.data[id] = val(value)
}

func (s *fakeStore) get(id string) uint32 {
	return binary.LittleEndian.Uint32(s.data[id])
}

func (s *fakeStore) Load(id, out []byte) error {
	s.loads = append(s.loads, string(id))

	v, ok := s.data[string(id)]
	if !ok {
		return ErrNotFound
	}

	copy(out, v)

	return nil
}

func (s *fakeStore) Store(id, value []byte) error {
	s.stores = append(s.stores, storeCall{
		id:    string(id),
		value: binary.LittleEndian.Uint32(value),
	})

	if s.storeErr != nil {
		return s.storeErr
	}

	s.data[string(id)] = append([]byte(nil), value...)

	return nil
}

func (s *fakeStore) Compare(a, b []byte) Ordering {
	return CompareBytes(a, b)
}

func key(s string) []byte {
	return []byte(s)
}

func val(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)

	return buf
}

func readUint32(c *Cache, id string) (uint32, error) {
	out := make([]byte, 4)
	err := c.Read(key(id), out)

	return binary.LittleEndian.Uint32(out), err
}

func residentIDs(c *Cache) []string {
	var ids []string

	c.Visit(func(line LineView) {
		if !line.Empty {
			ids = append(ids, string(line.ID))
		}
	})

	return ids
}
