package store

// SearchMessages performs a full-text search on message content, topics and
// sender names. A non-zero streamID restricts results to that stream.
func (db *DB) SearchMessages(query string, streamID int64, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.id, m.sender_id, m.sender_email, m.sender_name, m.type, m.stream_id,
		       m.stream_name, m.subject, m.content, m.timestamp, m.flags, m.raw,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if streamID != 0 {
		q += " AND m.stream_id = ?"
		args = append(args, streamID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		m := &r.Message
		if err := rows.Scan(
			&m.ID, &m.SenderID, &m.SenderEmail, &m.SenderName, &m.Type, &m.StreamID,
			&m.StreamName, &m.Subject, &m.Content, &m.Timestamp, &m.Flags, &m.Raw,
			&r.Snippet,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
