// Package cache provides a fixed-capacity, write-back cache that fronts a
// slower key-value backing store.
//
// A Cache holds a fixed number of lines. Each line stores one identifier and
// one value, both of fixed width. Lookups scan the lines linearly. On a miss,
// the cache asks a VictimFinder for a line to reclaim, writes the victim back
// to the BackingStore if it is occupied, loads the requested value and
// installs it. Writes only update the cached value; the backing store sees the
// new value when the line is evicted or when the cache is closed.
//
// A Cache is not safe for concurrent use. Wrap it in a SyncCache when more
// than one goroutine needs to access it.
package cache
