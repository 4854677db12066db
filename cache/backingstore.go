package cache

import "bytes"

// Ordering is the result of comparing two identifiers.
type Ordering int

// The possible results of a comparison. Only OrderEqual is relied upon by the
// cache.
const (
	OrderEqual Ordering = iota
	OrderGreater
	OrderLess
)

func (o Ordering) String() string {
	switch o {
	case OrderEqual:
		return "Equal"
	case OrderGreater:
		return "Greater"
	case OrderLess:
		return "Less"
	default:
		return "Unknown"
	}
}

// A BackingStore is the slower key-value store that the cache fronts.
type BackingStore interface {
	// Load writes the stored value of id into out. The content of out is
	// undefined if an error is returned.
	Load(id, out []byte) error

	// Store persists value under id. Calling Store again with the same
	// arguments must be harmless.
	Store(id, value []byte) error

	// Compare compares two identifiers.
	Compare(a, b []byte) Ordering
}

// Funcs adapts three plain functions to the BackingStore interface. All three
// functions must be set.
type Funcs struct {
	LoadFunc    func(id, out []byte) error
	StoreFunc   func(id, value []byte) error
	CompareFunc func(a, b []byte) Ordering
}

// Load calls f.LoadFunc.
func (f Funcs) Load(id, out []byte) error {
	return f.LoadFunc(id, out)
}

// Store calls f.StoreFunc.
func (f Funcs) Store(id, value []byte) error {
	return f.StoreFunc(id, value)
}

// Compare calls f.CompareFunc.
func (f Funcs) Compare(a, b []byte) Ordering {
	return f.CompareFunc(a, b)
}

func (f Funcs) isComplete() bool {
	return f.LoadFunc != nil && f.StoreFunc != nil && f.CompareFunc != nil
}

// CompareBytes compares two identifiers byte by byte.
func CompareBytes(a, b []byte) Ordering {
	switch bytes.Compare(a, b) {
	case 0:
		return OrderEqual
	case 1:
		return OrderGreater
	default:
		return OrderLess
	}
}
