package cache

import (
	"errors"
	"fmt"
)

// Errors reported by the cache and by backing stores.
var (
	ErrAllocation = errors.New("cache allocation failed")
	ErrLoad       = errors.New("backing store load failed")
	ErrWriteBack  = errors.New("backing store write-back failed")
	ErrClosed     = errors.New("cache is closed")
	ErrCorrupted  = errors.New("cache line corrupted")

	// ErrNotFound should be returned by a BackingStore when the identifier
	// does not exist.
	ErrNotFound = errors.New("identifier not found")
)

// A LoadError is returned when the backing store cannot provide the value of
// an identifier. No line is changed when a LoadError is returned.
type LoadError struct {
	ID  []byte
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %x: %v", e.ID, e.Err)
}

// Unwrap makes the error match both ErrLoad and the underlying error.
func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}

// A WriteBackError is returned when a line cannot be written back to the
// backing store. The operation that caused the write-back still completes, so
// a Read that returns a WriteBackError has filled its output.
type WriteBackError struct {
	ID  []byte
	Err error
}

func (e *WriteBackError) Error() string {
	return fmt.Sprintf("write back %x: %v", e.ID, e.Err)
}

// Unwrap makes the error match both ErrWriteBack and the underlying error.
func (e *WriteBackError) Unwrap() []error {
	return []error{ErrWriteBack, e.Err}
}

// A CorruptionError reports a line whose guard byte has been overwritten.
type CorruptionError struct {
	Index int
	Guard byte
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("line %d: guard is 0x%02x, want 0x%02x",
		e.Index, e.Guard, GuardValue)
}

// Unwrap returns ErrCorrupted.
func (e *CorruptionError) Unwrap() error {
	return ErrCorrupted
}
