package cache

import (
	"errors"
	"fmt"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/wbcache/hooking"
)

// Cache is a fixed-capacity, write-back cache.
type Cache struct {
	hooking.HookableBase

	name      string
	entrySize int
	idSize    int

	store        BackingStore
	victimFinder VictimFinder

	lines   *lineStore
	scratch []byte
	clock   uint64
	closed  bool

	exitHandler    atexit.HandlerID
	hasExitHandler bool
}

// New creates a cache with numLines lines that fronts store. Use MakeBuilder
// for more options.
func New(numLines, entrySize, idSize int, store BackingStore) (*Cache, error) {
	return MakeBuilder().
		WithNumLines(numLines).
		WithEntrySize(entrySize).
		WithIDSize(idSize).
		WithBackingStore(store).
		Build("Cache")
}

// Name returns the name of the cache.
func (c *Cache) Name() string {
	return c.name
}

// NumLines returns the capacity of the cache.
func (c *Cache) NumLines() int {
	if c.closed {
		return 0
	}

	return c.lines.numLines()
}

// EntrySize returns the size of a value in bytes.
func (c *Cache) EntrySize() int {
	return c.entrySize
}

// IDSize returns the size of an identifier in bytes.
func (c *Cache) IDSize() int {
	return c.idSize
}

// Clock returns the current value of the access clock.
func (c *Cache) Clock() uint64 {
	return c.clock
}

// NumOccupied returns the number of lines that hold an entry.
func (c *Cache) NumOccupied() int {
	if c.closed {
		return 0
	}

	return c.lines.numOccupied()
}

// Read copies the value of id into out. On a miss, the value is loaded from
// the backing store, possibly evicting another line.
//
// If the backing store cannot provide the value, a *LoadError is returned and
// out is not written. If the evicted line cannot be written back, out is
// still filled and a *WriteBackError is returned.
func (c *Cache) Read(id, out []byte) error {
	if c.closed {
		return ErrClosed
	}

	c.mustHaveSize(id, c.idSize, "identifier")
	c.mustHaveSize(out, c.entrySize, "output")

	index, err := c.resolve(id, OpRead)
	if index == c.lines.numLines() {
		return err
	}

	line := c.lines.lineAt(index)
	copy(out, line.Value)
	c.touch(index)

	return err
}

// Write replaces the value of id. The identifier must exist in the cache or in
// the backing store; Write never creates new identifiers. The backing store is
// not updated until the line is evicted or the cache is closed.
func (c *Cache) Write(id, value []byte) error {
	if c.closed {
		return ErrClosed
	}

	c.mustHaveSize(id, c.idSize, "identifier")
	c.mustHaveSize(value, c.entrySize, "value")

	index, err := c.resolve(id, OpWrite)
	if index == c.lines.numLines() {
		return err
	}

	line := c.lines.lineAt(index)
	copy(line.Value, value)
	line.Guard = GuardValue
	c.touch(index)

	return err
}

// Close writes every occupied line back to the backing store and releases the
// lines. Write-back failures are joined into the returned error; the lines are
// released regardless.
func (c *Cache) Close() error {
	if c.closed {
		return ErrClosed
	}

	if c.hasExitHandler {
		_ = c.exitHandler.Cancel()
		c.hasExitHandler = false
	}

	return c.flushAndRelease()
}

// closeAtExit flushes the cache from an atexit handler. It must not cancel
// the handler.
func (c *Cache) closeAtExit() {
	if c.closed {
		return
	}

	_ = c.flushAndRelease()
}

func (c *Cache) flushAndRelease() error {
	var errs []error

	for i := 0; i < c.lines.numLines(); i++ {
		if c.lines.lineAt(i).IsEmpty() {
			continue
		}

		if err := c.writeBack(i, OpClose, HookPosFlush); err != nil {
			errs = append(errs, err)
		}
	}

	c.lines = nil
	c.scratch = nil
	c.closed = true

	return errors.Join(errs...)
}

// IsClosed returns true after Close has been called.
func (c *Cache) IsClosed() bool {
	return c.closed
}

// resolve returns the index of the line that holds id, loading it on a miss.
// It returns the number of lines if id cannot be loaded.
func (c *Cache) resolve(id []byte, op Op) (int, error) {
	index := c.lines.findByID(id, c.store)
	if index != c.lines.numLines() {
		c.invokeHook(HookPosHit, op, index, id, nil)
		return index, nil
	}

	c.invokeHook(HookPosMiss, op, index, id, nil)

	return c.load(id, op)
}

// load brings id into the cache. The installed line stays empty until the
// caller touches it.
func (c *Cache) load(id []byte, op Op) (int, error) {
	victim := c.victimFinder.FindVictim(c.lines.lines)
	line := c.lines.lineAt(victim)

	if err := c.store.Load(id, c.scratch); err != nil {
		loadErr := &LoadError{ID: append([]byte(nil), id...), Err: err}
		c.invokeHook(HookPosLoadFailure, op, c.lines.numLines(), id, loadErr)

		return c.lines.numLines(), loadErr
	}

	var err error

	if !line.IsEmpty() {
		c.invokeHook(HookPosEvict, op, victim, line.ID, nil)
		err = c.writeBack(victim, op, HookPosWriteBack)
	}

	c.lines.install(victim, id, c.scratch)

	return victim, err
}

func (c *Cache) writeBack(index int, op Op, pos *hooking.HookPos) error {
	line := c.lines.lineAt(index)

	if err := c.store.Store(line.ID, line.Value); err != nil {
		wbErr := &WriteBackError{
			ID:  append([]byte(nil), line.ID...),
			Err: err,
		}
		c.invokeHook(HookPosWriteBackFailure, op, index, line.ID, wbErr)

		return wbErr
	}

	c.invokeHook(pos, op, index, line.ID, nil)

	return nil
}

func (c *Cache) touch(index int) {
	c.clock++
	c.lines.lineAt(index).LastAccess = c.clock
}

func (c *Cache) mustHaveSize(buf []byte, size int, what string) {
	if len(buf) != size {
		panic(fmt.Sprintf("%s is %d bytes, cache %s expects %d",
			what, len(buf), c.name, size))
	}
}
