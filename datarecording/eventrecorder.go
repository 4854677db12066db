package datarecording

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/sarchlab/wbcache/cache"
	"github.com/sarchlab/wbcache/hooking"
)

// EventTable is the name of the table that EventRecorder writes into.
const EventTable = "cache_events"

// EventEntry is one row of the event table.
type EventEntry struct {
	ID      string
	Cache   string
	Pos     string
	Op      string
	Line    int
	EntryID string
	Clock   uint64
	Error   string
}

// EventRecorder is a hook that records every cache event as a row of
// EventTable.
type EventRecorder struct {
	lock     sync.Mutex
	recorder DataRecorder
	err      error
}

// NewEventRecorder creates the event table in recorder and returns a hook that
// fills it.
func NewEventRecorder(recorder DataRecorder) (*EventRecorder, error) {
	if err := recorder.CreateTable(EventTable, EventEntry{}); err != nil {
		return nil, err
	}

	return &EventRecorder{recorder: recorder}, nil
}

// Func records a cache event.
func (r *EventRecorder) Func(ctx hooking.HookCtx) {
	evt, ok := ctx.Item.(cache.Event)
	if !ok {
		return
	}

	entry := EventEntry{
		ID:      xid.New().String(),
		Cache:   evt.Cache,
		Pos:     ctx.Pos.Name,
		Op:      string(evt.Op),
		Line:    evt.Line,
		EntryID: hex.EncodeToString(evt.ID),
		Clock:   evt.Clock,
	}

	if err, ok := ctx.Detail.(error); ok {
		entry.Error = err.Error()
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.recorder.InsertData(EventTable, entry); err != nil && r.err == nil {
		r.err = fmt.Errorf("record %s: %w", ctx.Pos.Name, err)
	}
}

// Err returns the first error met while recording, if any. Hooks cannot
// return errors, so recording failures are kept here.
func (r *EventRecorder) Err() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.err
}
