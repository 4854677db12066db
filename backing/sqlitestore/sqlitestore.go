// Package sqlitestore provides a backing store that keeps identifiers and
// values in a SQLite table.
package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"

	"github.com/sarchlab/wbcache/cache"
)

// DefaultTable is the table used when no table name is given.
const DefaultTable = "entries"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a backing store on top of a SQLite table with two BLOB columns,
// ID and Value.
type Store struct {
	*sql.DB

	dbName    string
	table     string
	ownsDB    bool
	loadStmt  *sql.Stmt
	storeStmt *sql.Stmt
}

// Open opens, or creates, the SQLite database at path. An empty path creates
// a new database with a unique name in the working directory.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "wbcache_store_" + xid.New().String() + ".sqlite3"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s, err := newStore(db, DefaultTable)
	if err != nil {
		db.Close()
		return nil, err
	}

	s.dbName = path
	s.ownsDB = true

	return s, nil
}

// NewWithDB creates a store that uses the given table of an already opened
// database. The caller keeps the ownership of db.
func NewWithDB(db *sql.DB, table string) (*Store, error) {
	return newStore(db, table)
}

func newStore(db *sql.DB, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}

	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	s := &Store{
		DB:    db,
		table: table,
	}

	if err := s.init(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) init() error {
	createTableSQL := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
	ID BLOB PRIMARY KEY,
	Value BLOB NOT NULL
);`

	if _, err := s.Exec(createTableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}

	var err error

	s.loadStmt, err = s.Prepare(
		`SELECT Value FROM ` + s.table + ` WHERE ID = ?`)
	if err != nil {
		return fmt.Errorf("prepare load: %w", err)
	}

	s.storeStmt, err = s.Prepare(
		`INSERT OR REPLACE INTO ` + s.table + ` (ID, Value) VALUES (?, ?)`)
	if err != nil {
		s.loadStmt.Close()
		return fmt.Errorf("prepare store: %w", err)
	}

	return nil
}

// Name returns the file name of the database, or an empty string if the
// database was given by the caller.
func (s *Store) Name() string {
	return s.dbName
}

// Table returns the name of the table.
func (s *Store) Table() string {
	return s.table
}

// Load implements cache.BackingStore.
func (s *Store) Load(id, out []byte) error {
	var value []byte

	err := s.loadStmt.QueryRow(id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
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

// Store implements cache.BackingStore. Storing the same value twice leaves a
// single row.
func (s *Store) Store(id, value []byte) error {
	if _, err := s.storeStmt.Exec(id, value); err != nil {
		return fmt.Errorf("store %x: %w", id, err)
	}

	return nil
}

// Compare implements cache.BackingStore.
func (s *Store) Compare(a, b []byte) cache.Ordering {
	return cache.CompareBytes(a, b)
}

// Count returns the number of rows in the table.
func (s *Store) Count() (int, error) {
	var n int

	err := s.QueryRow(`SELECT COUNT(*) FROM ` + s.table).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}

// Close releases the prepared statements, and the database if the store
// opened it.
func (s *Store) Close() error {
	errs := []error{s.loadStmt.Close(), s.storeStmt.Close()}

	if s.ownsDB {
		errs = append(errs, s.DB.Close())
	}

	return errors.Join(errs...)
}
