package cache

// A VictimFinder decides which line should be reclaimed when an identifier is
// not in the cache.
type VictimFinder interface {
	// FindVictim returns the index of the line to reclaim. The lines must not
	// be modified.
	FindVictim(lines []Line) int
}

// LRUVictimFinder picks the least recently used line. Empty lines are always
// picked before occupied ones.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor.
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the first empty line, or the line with the smallest last
// access time. Ties go to the lowest index.
func (e *LRUVictimFinder) FindVictim(lines []Line) int {
	victim := 0

	for i := range lines {
		if lines[i].IsEmpty() {
			return i
		}

		if lines[i].LastAccess < lines[victim].LastAccess {
			victim = i
		}
	}

	return victim
}
