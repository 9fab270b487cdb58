package store

import "time"

// InsertDeletionRecord appends one row to the deletion audit log. It
// never fails on duplicates: when the event path and the watchdog race
// on the same ID, both rows are kept.
func (db *DB) InsertDeletionRecord(rec *DeletionRecord) error {
	if rec.DeletedAt == 0 {
		rec.DeletedAt = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		INSERT INTO deletions (msg_id, chat_id, body, deleted_at, reason)
		VALUES (?, ?, ?, ?, ?)`,
		rec.MsgID, rec.ChatID, rec.Body, rec.DeletedAt, rec.Reason)
	return err
}

// ListDeletions returns the most recent deletion records.
func (db *DB) ListDeletions(limit int) ([]DeletionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, msg_id, chat_id, body, deleted_at, reason
		FROM deletions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recs []DeletionRecord
	for rows.Next() {
		var r DeletionRecord
		if err := rows.Scan(&r.ID, &r.MsgID, &r.ChatID, &r.Body, &r.DeletedAt, &r.Reason); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// DeletionsFor returns the audit rows for a single message ID, oldest first.
func (db *DB) DeletionsFor(msgID int64) ([]DeletionRecord, error) {
	rows, err := db.Query(`
		SELECT id, msg_id, chat_id, body, deleted_at, reason
		FROM deletions WHERE msg_id = ? ORDER BY id`, msgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recs []DeletionRecord
	for rows.Next() {
		var r DeletionRecord
		if err := rows.Scan(&r.ID, &r.MsgID, &r.ChatID, &r.Body, &r.DeletedAt, &r.Reason); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
