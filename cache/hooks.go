package cache

import (
	"fmt"

	"github.com/sarchlab/wbcache/hooking"
)

// The positions at which a cache invokes its hooks. The hook item is always
// an Event. The hook detail is the error for the failure positions.
var (
	HookPosHit              = &hooking.HookPos{Name: "CacheHit"}
	HookPosMiss             = &hooking.HookPos{Name: "CacheMiss"}
	HookPosEvict            = &hooking.HookPos{Name: "CacheEvict"}
	HookPosWriteBack        = &hooking.HookPos{Name: "CacheWriteBack"}
	HookPosWriteBackFailure = &hooking.HookPos{Name: "CacheWriteBackFailure"}
	HookPosLoadFailure      = &hooking.HookPos{Name: "CacheLoadFailure"}
	HookPosFlush            = &hooking.HookPos{Name: "CacheFlush"}
)

// Op names the cache operation that triggered an event.
type Op string

// The cache operations.
const (
	OpRead  Op = "read"
	OpWrite Op = "write"
	OpClose Op = "close"
)

// An Event describes what happened to a line.
type Event struct {
	Cache string
	Op    Op
	Line  int
	ID    []byte
	Clock uint64
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s line=%d id=%x clock=%d",
		e.Cache, e.Op, e.Line, e.ID, e.Clock)
}

func (c *Cache) invokeHook(
	pos *hooking.HookPos,
	op Op,
	index int,
	id []byte,
	detail interface{},
) {
	if c.NumHooks() == 0 {
		return
	}

	evt := Event{
		Cache: c.name,
		Op:    op,
		Line:  index,
		ID:    append([]byte(nil), id...),
		Clock: c.clock,
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   evt,
		Detail: detail,
	})
}
