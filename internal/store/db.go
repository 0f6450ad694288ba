package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultUndoWindow is the server-enforced deadline for undoing a soft
// delete. The client countdown is configured separately and may lag; this
// deadline is the authoritative one.
const DefaultUndoWindow = 5 * time.Second

// DB wraps a SQLite database connection for the profile-owned tiendo.db.
type DB struct {
	*sql.DB
	undoWindow time.Duration
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, undoWindow: DefaultUndoWindow}, nil
}

// SetUndoWindow overrides the soft-delete undo deadline.
func (db *DB) SetUndoWindow(d time.Duration) {
	if d > 0 {
		db.undoWindow = d
	}
}
