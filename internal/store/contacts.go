package store

import (
	"fmt"
	"time"

	"github.com/limcrm/crmterm/internal/crm"
)

// ReplaceContacts swaps the cached contact list for a fresh snapshot in one
// transaction. The backend owns contacts; there is no incremental merge.
func (db *DB) ReplaceContacts(contacts []crm.Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM contacts`); err != nil {
		return fmt.Errorf("clear contacts: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, c := range contacts {
		var lastSeen any
		if c.LastSeen != nil {
			lastSeen = c.LastSeen.Format(time.RFC3339Nano)
		}
		if _, err := tx.Exec(`
			INSERT INTO contacts (id, whatsapp_id, name, last_message_preview, unread_count, last_seen, needs_intervention, is_blocked, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.WhatsappID, c.Name, c.LastMessagePreview, c.UnreadCount, lastSeen, c.NeedsIntervention, c.IsBlocked, now); err != nil {
			return fmt.Errorf("insert contact %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// CachedContacts returns the last stored contact snapshot.
func (db *DB) CachedContacts() ([]crm.Contact, error) {
	rows, err := db.Query(`
		SELECT id, whatsapp_id, name, last_message_preview, unread_count, last_seen, needs_intervention, is_blocked
		FROM contacts ORDER BY last_seen DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []crm.Contact
	for rows.Next() {
		var c crm.Contact
		var lastSeen *string
		if err := rows.Scan(&c.ID, &c.WhatsappID, &c.Name, &c.LastMessagePreview, &c.UnreadCount, &lastSeen, &c.NeedsIntervention, &c.IsBlocked); err != nil {
			return nil, err
		}
		if lastSeen != nil {
			if t, err := time.Parse(time.RFC3339Nano, *lastSeen); err == nil {
				c.LastSeen = &t
			}
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
