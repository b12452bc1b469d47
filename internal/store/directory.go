package store

import (
	"database/sql"
	"time"
)

func upsertUser(ex execer, u *User, now int64) error {
	_, err := ex.Exec(`
		INSERT INTO users (id, email, full_name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = CASE WHEN excluded.email != '' THEN excluded.email ELSE users.email END,
			full_name = CASE WHEN excluded.full_name != '' THEN excluded.full_name ELSE users.full_name END,
			updated_at = excluded.updated_at`,
		u.ID, u.Email, u.FullName, now)
	return err
}

func upsertStream(ex execer, s *Stream, now int64) error {
	_, err := ex.Exec(`
		INSERT INTO streams (id, name, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at`,
		s.ID, s.Name, now)
	return err
}

// UpsertUser inserts or updates a user. Empty fields keep stored values.
func (db *DB) UpsertUser(u *User) error {
	return upsertUser(db, u, time.Now().UnixMilli())
}

// UpsertStream inserts or renames a stream.
func (db *DB) UpsertStream(s *Stream) error {
	return upsertStream(db, s, time.Now().UnixMilli())
}

// GetUser returns a user by id, or nil if unknown.
func (db *DB) GetUser(id int64) (*User, error) {
	var u User
	err := db.QueryRow(`SELECT id, email, full_name FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.FullName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserIDByEmail resolves an email, case-insensitively. If the address moved
// between accounts the most recently seen one wins.
func (db *DB) UserIDByEmail(email string) (int64, bool) {
	var id int64
	err := db.QueryRow(`
		SELECT id FROM users WHERE email = ? COLLATE NOCASE
		ORDER BY updated_at DESC LIMIT 1`, email).Scan(&id)
	if err != nil {
		return 0, false
	}
	return id, true
}

// StreamIDByName resolves a stream name, case-insensitively.
func (db *DB) StreamIDByName(name string) (int64, bool) {
	var id int64
	err := db.QueryRow(`
		SELECT id FROM streams WHERE name = ? COLLATE NOCASE
		ORDER BY updated_at DESC LIMIT 1`, name).Scan(&id)
	if err != nil {
		return 0, false
	}
	return id, true
}

// UserCount returns the number of known users.
func (db *DB) UserCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
