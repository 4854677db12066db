package cache

import (
	"errors"
	"fmt"
	"io"
)

// LineView is a read-only copy of a line.
type LineView struct {
	Index      int    `json:"index"`
	LastAccess uint64 `json:"last_access"`
	Checksum   uint32 `json:"checksum"`
	ID         []byte `json:"id"`
	Value      []byte `json:"value"`
	Guard      byte   `json:"guard"`
	Empty      bool   `json:"empty"`
	Dirty      bool   `json:"dirty"`
}

func viewOf(index int, line *Line) LineView {
	return LineView{
		Index:      index,
		LastAccess: line.LastAccess,
		Checksum:   line.Checksum,
		ID:         append([]byte(nil), line.ID...),
		Value:      append([]byte(nil), line.Value...),
		Guard:      line.Guard,
		Empty:      line.IsEmpty(),
		Dirty:      line.IsDirty(),
	}
}

// Visit calls visit once for every line, in index order, whether the line is
// occupied or not. Nothing is visited after the cache is closed.
func (c *Cache) Visit(visit func(line LineView)) {
	if c.closed {
		return
	}

	for i := 0; i < c.lines.numLines(); i++ {
		visit(viewOf(i, c.lines.lineAt(i)))
	}
}

// Lines returns a view of every line.
func (c *Cache) Lines() []LineView {
	var views []LineView

	c.Visit(func(line LineView) {
		views = append(views, line)
	})

	return views
}

// Verify checks the guard of every occupied line and returns a
// *CorruptionError for each line whose guard has been overwritten. It never
// changes the cache.
func (c *Cache) Verify() error {
	var errs []error

	c.Visit(func(line LineView) {
		if line.Empty || line.Guard == GuardValue {
			return
		}

		errs = append(errs, &CorruptionError{Index: line.Index, Guard: line.Guard})
	})

	return errors.Join(errs...)
}

// A Formatter turns an identifier and a value into text.
type Formatter func(id, value []byte) string

// HexFormatter prints identifiers and values as hexadecimal.
func HexFormatter(id, value []byte) string {
	return fmt.Sprintf("%x => %x", id, value)
}

// Dump prints one line of text for every cache line.
func (c *Cache) Dump(w io.Writer, format Formatter) error {
	if format == nil {
		format = HexFormatter
	}

	var err error

	c.Visit(func(line LineView) {
		if err != nil {
			return
		}

		if line.Empty {
			_, err = fmt.Fprintf(w, "%d. (empty)\n", line.Index)
			return
		}

		_, err = fmt.Fprintf(w, "%d. [%d] %s\n",
			line.Index, line.LastAccess, format(line.ID, line.Value))
	})

	return err
}
