package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar counts the accesses of a batch that runs against a cache,
// such as warming it up with a list of entries.
type ProgressBar struct {
	lock sync.Mutex

	id        string
	name      string
	startTime time.Time
	total     uint64
	running   uint64
	succeeded uint64
	failed    uint64
}

// Progress is the state of a ProgressBar at one point in time.
type Progress struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	InProgress uint64    `json:"in_progress"`
	Finished   uint64    `json:"finished"`
	Failed     uint64    `json:"failed"`
}

// Begin marks one access as started.
func (b *ProgressBar) Begin() {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.running++
}

// Done marks one started access as finished. A non-nil err counts the access
// as failed.
func (b *ProgressBar) Done(err error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.running > 0 {
		b.running--
	}

	if err != nil {
		b.failed++
		return
	}

	b.succeeded++
}

// Progress returns the current state of the bar. Failed accesses count as
// finished too.
func (b *ProgressBar) Progress() Progress {
	b.lock.Lock()
	defer b.lock.Unlock()

	return Progress{
		ID:         b.id,
		Name:       b.name,
		StartTime:  b.startTime,
		Total:      b.total,
		InProgress: b.running,
		Finished:   b.succeeded + b.failed,
		Failed:     b.failed,
	}
}
