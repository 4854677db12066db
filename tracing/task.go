// Package tracing measures how long the calls into a backing store take.
package tracing

import "time"

// A Task is one call into a backing store.
type Task struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	What      string    `json:"what"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// The kinds of tasks that a TracedStore reports.
const (
	KindLoad  = "load"
	KindStore = "store"
)

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// KindIs returns a filter that keeps the tasks of one kind.
func KindIs(kind string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind
	}
}

// A Tracer is notified about the start and the end of tasks.
type Tracer interface {
	StartTask(task Task)
	EndTask(task Task)
}

// A TimeTeller tells the current time.
type TimeTeller interface {
	CurrentTime() time.Time
}

// WallClock is a TimeTeller that reads the system clock.
type WallClock struct{}

// CurrentTime returns time.Now().
func (WallClock) CurrentTime() time.Time {
	return time.Now()
}
