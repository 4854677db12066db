package hooking

import (
	"sync"
)

// EventCounter counts how many times each hook position is triggered.
type EventCounter struct {
	lock     sync.Mutex
	posNames []string
	counts   map[string]uint64
}

// NewEventCounter creates a new EventCounter.
func NewEventCounter() *EventCounter {
	c := &EventCounter{
		counts: make(map[string]uint64),
	}

	return c
}

// Func counts the position of the hook context.
func (c *EventCounter) Func(ctx HookCtx) {
	if ctx.Pos == nil {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	_, ok := c.counts[ctx.Pos.Name]
	if !ok {
		c.posNames = append(c.posNames, ctx.Pos.Name)
	}

	c.counts[ctx.Pos.Name]++
}

// GetPosNames returns the names of the positions observed, in the order they
// were first seen.
func (c *EventCounter) GetPosNames() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	names := make([]string, len(c.posNames))
	copy(names, c.posNames)

	return names
}

// GetCount returns the number of times a position has been triggered.
func (c *EventCounter) GetCount(pos *HookPos) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.counts[pos.Name]
}

// Snapshot returns a copy of all the counts, keyed by position name.
func (c *EventCounter) Snapshot() map[string]uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	snapshot := make(map[string]uint64, len(c.counts))
	for k, v := range c.counts {
		snapshot[k] = v
	}

	return snapshot
}

// Reset clears all the counts.
func (c *EventCounter) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.posNames = nil
	c.counts = make(map[string]uint64)
}
