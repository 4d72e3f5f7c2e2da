// Package state opens the library database and owns its schema.
package state

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName    = "pocketwaves"
	dbFileName = "library.db"
	memoryDSN  = ":memory:"
)

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

type Manager struct {
	db *sql.DB
}

// Open opens the database at the default XDG data location.
func Open() (*Manager, error) {
	dbPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens (creating if needed) the database file at path and brings
// its schema up to date.
func OpenPath(dbPath string) (*Manager, error) {
	if dbPath != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers and keeps in-memory databases alive.
	db.SetMaxOpenConns(1)

	setup := pragmas
	if dbPath != memoryDSN {
		setup = append(setup, "PRAGMA journal_mode = WAL")
	}
	for _, p := range setup {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db}, nil
}

// OpenMemory opens a private in-memory database. Used by tests.
func OpenMemory() (*Manager, error) {
	return OpenPath(memoryDSN)
}

func (m *Manager) DB() *sql.DB {
	return m.db
}

func (m *Manager) Close() error {
	return m.db.Close()
}

// DefaultPath returns the XDG data path of the library database.
func DefaultPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
