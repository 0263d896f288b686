package inbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/limcrm/crmterm/internal/bus"
	"github.com/limcrm/crmterm/internal/crm"
	"github.com/limcrm/crmterm/internal/gateway"
)

type staticCreds struct{ token string }

func (s *staticCreds) Token() string { return s.token }
func (s *staticCreds) Clear()        { s.token = "" }

func testStore(t *testing.T, handler http.HandlerFunc) (*Store, *bus.Bus) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gw, err := gateway.New(srv.URL, &staticCreds{token: "t"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	b := bus.New()
	return NewStore(crm.NewClient(gw), nil, b, nil), b
}

func TestSendMessageConfirmedReplacesOptimisticEntry(t *testing.T) {
	s, _ := testStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/crm-api/conversations/messages/" {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"srv1","contact":7,"direction":"OUT","message_type":"text","text_content":"hello","timestamp":"2024-05-01T10:00:00Z","status":"sent"}`))
	})

	if err := s.SendMessage(context.Background(), 7, "hello"); err != nil {
		t.Fatal(err)
	}

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len = %d, want exactly one entry", len(msgs))
	}
	got := msgs[0]
	if got.ID != "srv1" {
		t.Errorf("id = %q, want srv1", got.ID)
	}
	if got.Status != crm.StatusSent {
		t.Errorf("status = %q, want sent", got.Status)
	}
	if strings.HasPrefix(string(got.ID), "tmp-") {
		t.Error("temporary id leaked into confirmed entry")
	}
}

func TestSendMessageFailureKeepsTempEntryMarkedFailed(t *testing.T) {
	s, _ := testStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"server down"}`, http.StatusInternalServerError)
	})

	// an existing confirmed entry must survive the failed send untouched
	seedStore(s, 7, crm.Message{ID: "10", Direction: crm.DirectionIn, TextContent: "hi", Status: "received"})

	err := s.SendMessage(context.Background(), 7, "hello")
	if err == nil {
		t.Fatal("expected error")
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].ID != "10" || msgs[0].Status != "received" {
		t.Errorf("existing entry mutated: %+v", msgs[0])
	}
	failed := msgs[1]
	if !strings.HasPrefix(string(failed.ID), "tmp-") {
		t.Errorf("id = %q, want temporary id retained", failed.ID)
	}
	if failed.Status != crm.StatusFailed {
		t.Errorf("status = %q, want failed", failed.Status)
	}
	if failed.TextContent != "hello" {
		t.Errorf("content = %q, want preserved for retry", failed.TextContent)
	}
}

func TestSendMessageRejectsBlankText(t *testing.T) {
	s, _ := testStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if err := s.SendMessage(context.Background(), 7, "   "); err != ErrEmptyMessage {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	if len(s.Messages()) != 0 {
		t.Error("blank send appended an entry")
	}
}

func TestLoadMessagesReversesNewestFirst(t *testing.T) {
	s, _ := testStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":"3","text_content":"newest"},{"id":"2","text_content":"mid"},{"id":"1","text_content":"oldest"}],"count":3}`))
	})

	if err := s.LoadMessages(context.Background(), 7); err != nil {
		t.Fatal(err)
	}

	msgs := s.Messages()
	want := []crm.ID{"1", "2", "3"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("msgs[%d].ID = %q, want %q", i, msgs[i].ID, id)
		}
	}
	if s.ActiveContact() != 7 {
		t.Errorf("active contact = %d, want 7", s.ActiveContact())
	}
}

func TestLoadMessagesFailureKeepsPreviousThread(t *testing.T) {
	s, _ := testStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	seedStore(s, 7, crm.Message{ID: "1", TextContent: "hi"})

	if err := s.LoadMessages(context.Background(), 7); err == nil {
		t.Fatal("expected error")
	}
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].ID != "1" {
		t.Errorf("previous thread lost: %+v", msgs)
	}
}

func TestLoadContactsReplacesWholesale(t *testing.T) {
	calls := 0
	s, _ := testStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"results":[{"id":1,"name":"Rudo"},{"id":2,"name":"Tino"}],"count":2}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"id":2,"name":"Tino"}],"count":1}`))
	})

	if err := s.LoadContacts(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if len(s.Contacts()) != 2 {
		t.Fatalf("contacts = %d, want 2", len(s.Contacts()))
	}
	if err := s.LoadContacts(context.Background(), "tino"); err != nil {
		t.Fatal(err)
	}
	got := s.Contacts()
	if len(got) != 1 || got[0].DisplayName() != "Tino" {
		t.Errorf("filtered snapshot = %+v, want the new list only", got)
	}
}

func seedStore(s *Store, contactID int64, msgs ...crm.Message) {
	s.mu.Lock()
	s.activeContact = contactID
	s.messages = append([]crm.Message(nil), msgs...)
	s.mu.Unlock()
}

func TestIngestAppendsOnlyForActiveThread(t *testing.T) {
	s, _ := testStore(t, func(w http.ResponseWriter, r *http.Request) {})
	seedStore(s, 7, crm.Message{ID: "1", TextContent: "hi"})

	if !s.Ingest(crm.Message{ID: "2", Contact: 7, TextContent: "reply"}) {
		t.Fatal("ingest for active thread rejected")
	}
	if s.Ingest(crm.Message{ID: "3", Contact: 9, TextContent: "other thread"}) {
		t.Error("ingest for inactive thread accepted")
	}
	if s.Ingest(crm.Message{ID: "2", Contact: 7, TextContent: "dup"}) {
		t.Error("duplicate id accepted")
	}
	msgs := s.Messages()
	if len(msgs) != 2 || msgs[1].ID != "2" {
		t.Errorf("thread = %+v", msgs)
	}
}

func TestIsNotifiedChecksGatewayFlag(t *testing.T) {
	s, _ := testStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	})
	seedStore(s, 7)

	err := s.SendMessage(context.Background(), 7, "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotified(err) {
		t.Error("gateway-surfaced error should count as notified")
	}
	if IsNotified(&gateway.APIError{Message: "fresh"}) {
		t.Error("untoasted error should not count as notified")
	}
	if IsNotified(context.Canceled) {
		t.Error("non-API error should not count as notified")
	}
}
