// Package filestore provides a backing store that keeps every entry in its
// own file.
package filestore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/sarchlab/wbcache/cache"
)

const (
	fileSuffix = ".entry"
	tempPrefix = ".tmp-"
)

// Store keeps each value in a file named after the hex encoding of its
// identifier. Values are written to a temporary file next to the entry first
// and renamed into place, so a reader never observes a partial value.
type Store struct {
	fs billy.Filesystem
}

// New creates a store on top of fs.
func New(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// NewOS creates a store in a directory of the operating system file system.
func NewOS(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	return New(osfs.New(dir)), nil
}

func fileName(id []byte) string {
	return hex.EncodeToString(id) + fileSuffix
}

// Load implements cache.BackingStore.
func (s *Store) Load(id, out []byte) error {
	value, err := util.ReadFile(s.fs, fileName(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %x", cache.ErrNotFound, id)
	}

	if err != nil {
		return fmt.Errorf("load %x: %w", id, err)
	}

	if len(value) != len(out) {
		return fmt.Errorf("value of %x is %d bytes, want %d",
			id, len(value), len(out))
	}

	copy(out, value)

	return nil
}

// Store implements cache.BackingStore.
func (s *Store) Store(id, value []byte) error {
	name := fileName(id)
	tempName := tempPrefix + name

	f, err := s.fs.Create(tempName)
	if err != nil {
		return fmt.Errorf("store %x: %w", id, err)
	}

	if _, err := f.Write(value); err != nil {
		f.Close()
		_ = s.fs.Remove(tempName)

		return fmt.Errorf("store %x: %w", id, err)
	}

	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tempName)
		return fmt.Errorf("store %x: %w", id, err)
	}

	if err := s.fs.Rename(tempName, name); err != nil {
		_ = s.fs.Remove(tempName)
		return fmt.Errorf("store %x: %w", id, err)
	}

	return nil
}

// Compare implements cache.BackingStore.
func (s *Store) Compare(a, b []byte) cache.Ordering {
	return cache.CompareBytes(a, b)
}

// IDs returns the identifiers of all the stored entries, sorted by their
// file names.
func (s *Store) IDs() ([][]byte, error) {
	infos, err := s.fs.ReadDir("/")
	if err != nil {
		return nil, err
	}

	var names []string

	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}

		names = append(names, name)
	}

	sort.Strings(names)

	ids := make([][]byte, 0, len(names))

	for _, name := range names {
		id, err := hex.DecodeString(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// Export copies the value of id to w.
func (s *Store) Export(id []byte, w io.Writer) error {
	f, err := s.fs.Open(fileName(id))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)

	return err
}
