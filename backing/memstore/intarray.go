package memstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/wbcache/cache"
)

// IntSize is the size of the identifiers and values of an IntArray.
const IntSize = 4

// ErrInvalidID is returned for identifiers outside of an IntArray.
var ErrInvalidID = errors.New("invalid identifier")

// IntArray is a fixed-size array of int32 values. Identifiers are array
// indices encoded as 4-byte little-endian unsigned integers, and values are
// 4-byte little-endian signed integers.
type IntArray struct {
	data []int32
}

// NewIntArray creates an array of n values, all set to fill.
func NewIntArray(n int, fill int32) *IntArray {
	a := &IntArray{data: make([]int32, n)}
	for i := range a.data {
		a.data[i] = fill
	}

	return a
}

// Len returns the number of values in the array.
func (a *IntArray) Len() int {
	return len(a.data)
}

// At returns the value at index i.
func (a *IntArray) At(i int) int32 {
	return a.data[i]
}

// Set sets the value at index i.
func (a *IntArray) Set(i int, v int32) {
	a.data[i] = v
}

func (a *IntArray) index(id []byte) (int, error) {
	if len(id) != IntSize {
		return 0, fmt.Errorf("%w: identifier is %d bytes", ErrInvalidID, len(id))
	}

	i := binary.LittleEndian.Uint32(id)
	if int(i) >= len(a.data) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidID, i)
	}

	return int(i), nil
}

// Load implements cache.BackingStore.
func (a *IntArray) Load(id, out []byte) error {
	i, err := a.index(id)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(out, uint32(a.data[i]))

	return nil
}

// Store implements cache.BackingStore.
func (a *IntArray) Store(id, value []byte) error {
	i, err := a.index(id)
	if err != nil {
		return err
	}

	a.data[i] = int32(binary.LittleEndian.Uint32(value))

	return nil
}

// Compare implements cache.BackingStore by comparing the indices.
func (a *IntArray) Compare(x, y []byte) cache.Ordering {
	ix := binary.LittleEndian.Uint32(x)
	iy := binary.LittleEndian.Uint32(y)

	switch {
	case ix > iy:
		return cache.OrderGreater
	case ix < iy:
		return cache.OrderLess
	default:
		return cache.OrderEqual
	}
}

// EncodeInt encodes an identifier or a value of an IntArray.
func EncodeInt(v int32) []byte {
	buf := make([]byte, IntSize)
	binary.LittleEndian.PutUint32(buf, uint32(v))

	return buf
}

// DecodeInt decodes an identifier or a value of an IntArray.
func DecodeInt(buf []byte) int32 {
	return int32(binary.LittleEndian.Uint32(buf))
}
