package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite cache of fetched messages, users and streams.
type DB struct {
	*sql.DB
	path string
}

// Open opens the cache in WAL mode. Write transactions take the lock up
// front (_txlock=immediate) so a SaveBatch never fails mid-way on a lock
// upgrade while the API reads.
func Open(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db %s: %w", path, err)
	}
	return &DB{DB: db, path: path}, nil
}

// Path is the database file the cache was opened from.
func (db *DB) Path() string { return db.path }
