package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/limcrm/crmterm/internal/crm"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestReplaceContactsWholesale(t *testing.T) {
	db := testDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	first := []crm.Contact{
		{ID: 1, WhatsappID: "263771", Name: "Rudo", UnreadCount: 2, LastSeen: &now},
		{ID: 2, WhatsappID: "263772", Name: "Tapiwa"},
	}
	if err := db.ReplaceContacts(first); err != nil {
		t.Fatal(err)
	}

	// A re-fetch supersedes everything, including removed rows.
	second := []crm.Contact{{ID: 3, WhatsappID: "263773", Name: "Nyasha", NeedsIntervention: true}}
	if err := db.ReplaceContacts(second); err != nil {
		t.Fatal(err)
	}

	got, err := db.CachedContacts()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d contacts, want 1 (wholesale replacement)", len(got))
	}
	if got[0].ID != 3 || !got[0].NeedsIntervention {
		t.Errorf("contact = %+v", got[0])
	}
}

func TestReplaceThreadPreservesOrder(t *testing.T) {
	db := testDB(t)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []crm.Message{
		{ID: "10", Direction: crm.DirectionIn, MessageType: "text", TextContent: "hi", Timestamp: &ts, Status: "received"},
		{ID: "tmp-abc", Direction: crm.DirectionOut, MessageType: "text", TextContent: "hello", Status: crm.StatusPending},
	}
	if err := db.ReplaceThread(7, msgs); err != nil {
		t.Fatal(err)
	}

	got, err := db.CachedThread(7)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].ID != "10" || got[1].ID != "tmp-abc" {
		t.Errorf("order = %s, %s; want 10, tmp-abc", got[0].ID, got[1].ID)
	}
	if got[0].Timestamp == nil || !got[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, ts)
	}
	if got[1].Timestamp != nil {
		t.Errorf("pending message timestamp = %v, want nil", got[1].Timestamp)
	}
	if got[1].Contact != 7 {
		t.Errorf("contact = %d, want 7", got[1].Contact)
	}
}

func TestThreadsAreIndependent(t *testing.T) {
	db := testDB(t)

	if err := db.ReplaceThread(1, []crm.Message{{ID: "a", Direction: "in"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceThread(2, []crm.Message{{ID: "b", Direction: "in"}}); err != nil {
		t.Fatal(err)
	}
	// Replacing thread 1 must not touch thread 2.
	if err := db.ReplaceThread(1, nil); err != nil {
		t.Fatal(err)
	}

	got, err := db.CachedThread(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("thread 2 = %+v, want untouched", got)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	r1, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !r1.Changed {
		t.Error("first migrate should apply changes")
	}
	r2, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if r2.Changed {
		t.Error("second migrate should be a no-op")
	}
}
