package store

import (
	"fmt"
	"time"

	"github.com/limcrm/crmterm/internal/crm"
)

// ReplaceThread swaps the cached message sequence for one contact in a
// single transaction, preserving the given order.
func (db *DB) ReplaceThread(contactID int64, msgs []crm.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE contact_id = ?`, contactID); err != nil {
		return fmt.Errorf("clear thread: %w", err)
	}

	for i, m := range msgs {
		var ts any
		if m.Timestamp != nil {
			ts = m.Timestamp.Format(time.RFC3339Nano)
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (id, contact_id, direction, message_type, text_content, timestamp, status, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID.String(), contactID, m.Direction, m.MessageType, m.TextContent, ts, m.Status, i); err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// CachedThread returns the last stored message sequence for a contact in
// its original order.
func (db *DB) CachedThread(contactID int64) ([]crm.Message, error) {
	rows, err := db.Query(`
		SELECT id, direction, message_type, text_content, timestamp, status
		FROM messages WHERE contact_id = ? ORDER BY position ASC`, contactID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []crm.Message
	for rows.Next() {
		var m crm.Message
		var id string
		var ts *string
		if err := rows.Scan(&id, &m.Direction, &m.MessageType, &m.TextContent, &ts, &m.Status); err != nil {
			return nil, err
		}
		m.ID = crm.ID(id)
		m.Contact = contactID
		if ts != nil {
			if t, err := time.Parse(time.RFC3339Nano, *ts); err == nil {
				m.Timestamp = &t
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
