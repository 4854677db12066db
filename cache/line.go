package cache

import (
	"fmt"
	"unsafe"
)

// A Line is one slot of the cache. The ID and Value slices of all the lines
// of a cache share one arena that is allocated when the cache is built.
type Line struct {
	// LastAccess is the cache clock at the most recent access. Zero means the
	// line is empty.
	LastAccess uint64

	// Checksum is the checksum of the value as it was loaded from the backing
	// store.
	Checksum uint32

	ID    []byte
	Value []byte

	// Guard is set to GuardValue after every write to the line.
	Guard byte
}

// IsEmpty returns true if the line does not hold an entry.
func (l *Line) IsEmpty() bool {
	return l.LastAccess == 0
}

// IsDirty returns true if the value differs from the value loaded from the
// backing store.
func (l *Line) IsDirty() bool {
	return !l.IsEmpty() && Checksum(l.Value) != l.Checksum
}

// lineHeaderSize is the memory a Line takes besides its ID and Value bytes.
const lineHeaderSize = uint64(unsafe.Sizeof(Line{}))

type lineStore struct {
	lines []Line
	arena []byte

	idSize    int
	entrySize int
}

func newLineStore(numLines, idSize, entrySize int) (*lineStore, error) {
	lineSize := idSize + entrySize

	lines, err := allocate[Line](numLines)
	if err != nil {
		return nil, err
	}

	arena, err := allocate[byte](numLines * lineSize)
	if err != nil {
		return nil, err
	}

	s := &lineStore{
		lines:     lines,
		arena:     arena,
		idSize:    idSize,
		entrySize: entrySize,
	}

	for i := range s.lines {
		offset := i * lineSize
		idEnd := offset + idSize
		valueEnd := idEnd + entrySize

		s.lines[i].ID = arena[offset:idEnd:idEnd]
		s.lines[i].Value = arena[idEnd:valueEnd:valueEnd]
	}

	return s, nil
}

func allocate[T any](n int) (buf []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("%w: %d elements: %v", ErrAllocation, n, r)
		}
	}()

	return make([]T, n), nil
}

func (s *lineStore) numLines() int {
	return len(s.lines)
}

func (s *lineStore) lineAt(index int) *Line {
	if index < 0 || index >= len(s.lines) {
		panic(fmt.Sprintf("line index %d out of range [0, %d)",
			index, len(s.lines)))
	}

	return &s.lines[index]
}

// findByID returns the index of the occupied line that holds id, or the
// number of lines if no line holds it.
func (s *lineStore) findByID(id []byte, store BackingStore) int {
	for i := range s.lines {
		line := &s.lines[i]
		if line.IsEmpty() {
			continue
		}

		if store.Compare(line.ID, id) == OrderEqual {
			return i
		}
	}

	return len(s.lines)
}

func (s *lineStore) install(index int, id, value []byte) {
	line := s.lineAt(index)

	copy(line.ID, id[:s.idSize])
	copy(line.Value, value[:s.entrySize])
	line.Checksum = Checksum(line.Value)
	line.Guard = GuardValue
	line.LastAccess = 0
}

func (s *lineStore) numOccupied() int {
	n := 0

	for i := range s.lines {
		if !s.lines[i].IsEmpty() {
			n++
		}
	}

	return n
}
