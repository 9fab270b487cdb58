package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordMessage inserts a message if no row with the same (chat_id,
// msg_id) exists yet. Duplicate calls are no-ops: the first observed
// body wins and is never overwritten.
func (db *DB) RecordMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (chat_id, msg_id, from_id, body, detected_urls, deleted, observed_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(chat_id, msg_id) DO NOTHING`,
		m.ChatID, m.MsgID, m.FromID, m.Body, m.DetectedURLs, now)
	return err
}

// MarkDeletedIfPresent flips the deleted flag for the message with the
// given upstream ID and reports the prior body and chat. The flag only
// ever transitions false to true; a second caller racing the first
// observes WasAlreadyDeleted. chatID scopes the lookup: channel-local
// IDs collide with the account-wide common sequence, so a caller that
// knows the chat must say so. chatID 0 means an unhinted common-sequence
// deletion and locates the row by msg_id alone, preferring an
// undeleted row when a collision exists.
func (db *DB) MarkDeletedIfPresent(chatID, msgID int64) (*DeletedMark, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT chat_id, body, deleted FROM messages WHERE msg_id = ? ORDER BY deleted, id LIMIT 1`
	args := []any{msgID}
	if chatID != 0 {
		query = `SELECT chat_id, body, deleted FROM messages WHERE chat_id = ? AND msg_id = ?`
		args = []any{chatID, msgID}
	}

	var mark DeletedMark
	var deleted int
	err = tx.QueryRow(query, args...).
		Scan(&mark.ChatID, &mark.Body, &deleted)
	if err == sql.ErrNoRows {
		return &mark, nil
	}
	if err != nil {
		return nil, err
	}
	mark.Found = true
	mark.WasAlreadyDeleted = deleted != 0

	if !mark.WasAlreadyDeleted {
		if _, err := tx.Exec(`
			UPDATE messages SET deleted = 1
			WHERE chat_id = ? AND msg_id = ? AND deleted = 0`,
			mark.ChatID, msgID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &mark, nil
}

// GetMessage returns a single message by (chat_id, msg_id), or nil.
func (db *DB) GetMessage(chatID, msgID int64) (*Message, error) {
	var m Message
	var deleted int
	err := db.QueryRow(`
		SELECT id, chat_id, msg_id, from_id, body, detected_urls, deleted, observed_at
		FROM messages WHERE chat_id = ? AND msg_id = ?`, chatID, msgID).
		Scan(&m.ID, &m.ChatID, &m.MsgID, &m.FromID, &m.Body, &m.DetectedURLs, &deleted, &m.ObservedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Deleted = deleted != 0
	return &m, nil
}

// ChatsWithOwnMessages returns the distinct chats holding at least one
// stored message from the given sender.
func (db *DB) ChatsWithOwnMessages(fromID int64) ([]int64, error) {
	rows, err := db.Query(`SELECT DISTINCT chat_id FROM messages WHERE from_id = ?`, fromID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, err
		}
		chats = append(chats, chatID)
	}
	return chats, rows.Err()
}

// UndeletedMessageIDs returns the not-yet-deleted message IDs for the
// given sender in the given chat. This is the local half of the
// watchdog diff.
func (db *DB) UndeletedMessageIDs(chatID, fromID int64) (map[int64]struct{}, error) {
	rows, err := db.Query(`
		SELECT msg_id FROM messages
		WHERE chat_id = ? AND from_id = ? AND deleted = 0`, chatID, fromID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}
