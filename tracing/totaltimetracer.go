package tracing

import (
	"sync"
	"time"
)

// TotalTimeTracer sums the time spent on the tasks it keeps. Overlapping
// tasks are each counted in full.
type TotalTimeTracer struct {
	timeTeller TimeTeller
	filter     TaskFilter

	lock      sync.Mutex
	started   map[string]time.Time
	totalTime time.Duration
	longest   time.Duration
	count     uint64
}

// NewTotalTimeTracer creates a new TotalTimeTracer. A nil filter keeps every
// task.
func NewTotalTimeTracer(
	timeTeller TimeTeller,
	filter TaskFilter,
) *TotalTimeTracer {
	if filter == nil {
		filter = func(Task) bool { return true }
	}

	return &TotalTimeTracer{
		timeTeller: timeTeller,
		filter:     filter,
		started:    make(map[string]time.Time),
	}
}

// TotalTime returns the time spent on the tasks that ended.
func (t *TotalTimeTracer) TotalTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totalTime
}

// LongestTime returns the duration of the slowest task that ended.
func (t *TotalTimeTracer) LongestTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.longest
}

// TotalCount returns the number of tasks that ended.
func (t *TotalTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.count
}

// InFlight returns the number of tasks that started but have not ended.
func (t *TotalTimeTracer) InFlight() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.started)
}

// StartTask records the task start time.
func (t *TotalTimeTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	t.started[task.ID] = now
	t.lock.Unlock()
}

// EndTask adds the time since the task started.
func (t *TotalTimeTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.started[task.ID]
	if !ok {
		return
	}

	delete(t.started, task.ID)

	d := now.Sub(start)
	t.totalTime += d
	t.count++

	if d > t.longest {
		t.longest = d
	}
}
