package hooking

import (
	"fmt"
	"log"
)

// LogHookBase provides the common logic for all hooks that print to a
// logger.
type LogHookBase struct {
	*log.Logger
}

// EventLogger is a hook that prints one line for every triggered position.
type EventLogger struct {
	LogHookBase

	filter func(pos *HookPos) bool
}

// NewEventLogger returns a new EventLogger which will write in to the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger

	return h
}

// WithFilter makes the logger only print the positions that the filter
// accepts.
func (h *EventLogger) WithFilter(filter func(pos *HookPos) bool) *EventLogger {
	h.filter = filter
	return h
}

// Func writes the position and item into the logger.
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos == nil {
		return
	}

	if h.filter != nil && !h.filter(ctx.Pos) {
		return
	}

	if ctx.Detail != nil {
		h.Logger.Printf("%s, %s, %v", ctx.Pos.Name, describe(ctx.Item), ctx.Detail)
		return
	}

	h.Logger.Printf("%s, %s", ctx.Pos.Name, describe(ctx.Item))
}

func describe(item interface{}) string {
	switch v := item.(type) {
	case nil:
		return "-"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
