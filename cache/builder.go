package cache

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/wbcache/hooking"
	"github.com/tebeka/atexit"
)

// DefaultMaxBytes is the most memory a builder gives a cache unless told
// otherwise.
const DefaultMaxBytes = 1 << 30

// Builder can build caches.
type Builder struct {
	numLines     int
	entrySize    int
	idSize       int
	maxBytes     uint64
	store        BackingStore
	victimFinder VictimFinder
	hooks        []hooking.Hook
	flushAtExit  bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		numLines:  16,
		entrySize: 8,
		idSize:    8,
		maxBytes:  DefaultMaxBytes,
	}
}

// WithNumLines sets the number of lines of the cache.
func (b Builder) WithNumLines(numLines int) Builder {
	b.numLines = numLines
	return b
}

// WithEntrySize sets the size of a value in bytes.
func (b Builder) WithEntrySize(entrySize int) Builder {
	b.entrySize = entrySize
	return b
}

// WithIDSize sets the size of an identifier in bytes.
func (b Builder) WithIDSize(idSize int) Builder {
	b.idSize = idSize
	return b
}

// WithMaxBytes limits the memory that the cache takes for its lines and its
// scratch buffer. Building a cache that needs more fails with ErrAllocation.
func (b Builder) WithMaxBytes(maxBytes uint64) Builder {
	b.maxBytes = maxBytes
	return b
}

// WithBackingStore sets the store that the cache fronts.
func (b Builder) WithBackingStore(store BackingStore) Builder {
	b.store = store
	return b
}

// WithVictimFinder replaces the default LRU victim finder.
func (b Builder) WithVictimFinder(victimFinder VictimFinder) Builder {
	b.victimFinder = victimFinder
	return b
}

// WithHook registers a hook on the cache once it is built.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	b.hooks = append(append([]hooking.Hook(nil), b.hooks...), hook)
	return b
}

// WithFlushAtExit makes the cache close itself when the program exits through
// atexit.Exit. Closing the cache earlier removes the exit handler.
func (b Builder) WithFlushAtExit() Builder {
	b.flushAtExit = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.numLines <= 0 {
		panic(fmt.Sprintf("number of lines must be positive, got %d", b.numLines))
	}

	if b.entrySize <= 0 {
		panic(fmt.Sprintf("entry size must be positive, got %d", b.entrySize))
	}

	if b.idSize <= 0 {
		panic(fmt.Sprintf("identifier size must be positive, got %d", b.idSize))
	}

	if b.store == nil {
		panic("backing store is not set")
	}

	if f, ok := b.store.(Funcs); ok && !f.isComplete() {
		panic("backing store functions must all be set")
	}
}

// memorySize returns the bytes that a cache takes: the line records, the
// identifier and value arena, and the scratch buffer.
func (b Builder) memorySize() (uint64, error) {
	lineSize := lineHeaderSize + uint64(b.idSize) + uint64(b.entrySize)

	hi, size := bits.Mul64(uint64(b.numLines), lineSize)
	size, carry := bits.Add64(size, uint64(b.entrySize), 0)

	if hi != 0 || carry != 0 || size > b.maxBytes {
		return 0, fmt.Errorf("%w: %d lines of %d bytes exceed the limit of %d bytes",
			ErrAllocation, b.numLines, lineSize, b.maxBytes)
	}

	return size, nil
}

// Build builds a cache. It either returns a ready cache or an error wrapping
// ErrAllocation; no half-built cache is ever returned.
func (b Builder) Build(name string) (*Cache, error) {
	b.parametersMustBeValid()

	if _, err := b.memorySize(); err != nil {
		return nil, err
	}

	lines, err := newLineStore(b.numLines, b.idSize, b.entrySize)
	if err != nil {
		return nil, err
	}

	scratch, err := allocate[byte](b.entrySize)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		name:         name,
		entrySize:    b.entrySize,
		idSize:       b.idSize,
		store:        b.store,
		victimFinder: b.victimFinder,
		lines:        lines,
		scratch:      scratch,
	}

	if c.victimFinder == nil {
		c.victimFinder = NewLRUVictimFinder()
	}

	for _, h := range b.hooks {
		c.AcceptHook(h)
	}

	if b.flushAtExit {
		c.exitHandler = atexit.Register(c.closeAtExit)
		c.hasExitHandler = true
	}

	return c, nil
}
