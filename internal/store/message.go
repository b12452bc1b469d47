package store

import (
	"database/sql"
	"fmt"
	"time"
)

const messageColumns = `id, sender_id, sender_email, sender_name, type, stream_id, stream_name, subject, content, timestamp, flags, raw`

const upsertMessageSQL = `
	INSERT INTO messages (id, sender_id, sender_email, sender_name, type, stream_id, stream_name, subject, content, timestamp, flags, raw, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		sender_name = excluded.sender_name,
		stream_name = CASE WHEN excluded.stream_name != '' THEN excluded.stream_name ELSE messages.stream_name END,
		subject = excluded.subject,
		content = excluded.content,
		flags = excluded.flags,
		raw = CASE WHEN excluded.raw != '' THEN excluded.raw ELSE messages.raw END`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertMessage(ex execer, m *Message, now int64) error {
	_, err := ex.Exec(upsertMessageSQL,
		m.ID, m.SenderID, m.SenderEmail, m.SenderName, m.Type, m.StreamID, m.StreamName,
		m.Subject, m.Content, m.Timestamp, m.Flags, m.Raw, now)
	return err
}

// UpsertMessage inserts or updates a message (idempotent on id).
func (db *DB) UpsertMessage(m *Message) error {
	return upsertMessage(db, m, time.Now().UnixMilli())
}

// SaveBatch stores a fetched page and the users and streams it mentions in
// one transaction.
func (db *DB) SaveBatch(b Batch) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for i := range b.Users {
		if err := upsertUser(tx, &b.Users[i], now); err != nil {
			return fmt.Errorf("upsert user %d: %w", b.Users[i].ID, err)
		}
	}
	for i := range b.Streams {
		if err := upsertStream(tx, &b.Streams[i], now); err != nil {
			return fmt.Errorf("upsert stream %d: %w", b.Streams[i].ID, err)
		}
	}
	for i := range b.Messages {
		if err := upsertMessage(tx, &b.Messages[i], now); err != nil {
			return fmt.Errorf("upsert message %d: %w", b.Messages[i].ID, err)
		}
	}
	return tx.Commit()
}

// GetMessage returns a message by id, or nil if it is not cached.
func (db *DB) GetMessage(id int64) (*Message, error) {
	row := db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns up to limit messages with id below beforeID, newest
// first. beforeID <= 0 starts from the newest message. A non-zero streamID
// restricts the result to that stream.
func (db *DB) ListMessages(streamID, beforeID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + messageColumns + ` FROM messages WHERE 1 = 1`
	var args []any
	if beforeID > 0 {
		q += ` AND id < ?`
		args = append(args, beforeID)
	}
	if streamID != 0 {
		q += ` AND stream_id = ?`
		args = append(args, streamID)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// MessageCount returns the total number of cached messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// MessageBounds returns the lowest and highest cached ids, or zeros when
// the cache is empty.
func (db *DB) MessageBounds() (first, last int64, err error) {
	err = db.QueryRow(`SELECT COALESCE(MIN(id), 0), COALESCE(MAX(id), 0) FROM messages`).Scan(&first, &last)
	return first, last, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*Message, error) {
	var m Message
	if err := s.Scan(&m.ID, &m.SenderID, &m.SenderEmail, &m.SenderName, &m.Type, &m.StreamID,
		&m.StreamName, &m.Subject, &m.Content, &m.Timestamp, &m.Flags, &m.Raw); err != nil {
		return nil, err
	}
	return &m, nil
}
