package crm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/limcrm/crmterm/internal/gateway"
)

type staticCreds struct{ token string }

func (s *staticCreds) Token() string { return s.token }
func (s *staticCreds) Clear()        { s.token = "" }

func testCRM(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gw, err := gateway.New(srv.URL, &staticCreds{token: "t"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewClient(gw)
}

func TestLoginDecodesTokenPair(t *testing.T) {
	var gotPath, gotBody string
	c := testCRM(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		_, _ = w.Write([]byte(`{"access":"a1","refresh":"r1"}`))
	})

	pair, err := c.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/crm-api/auth/token/" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody != `{"password":"secret","username":"admin"}` {
		t.Errorf("body = %q", gotBody)
	}
	if pair.Access != "a1" || pair.Refresh != "r1" {
		t.Errorf("pair = %+v", pair)
	}
}

func TestListContactsSearchParam(t *testing.T) {
	var gotQuery string
	c := testCRM(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"results":[{"id":1,"whatsapp_id":"26377","name":"Rudo"}],"count":1}`))
	})

	contacts, err := c.ListContacts(context.Background(), "rudo m")
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "search=rudo+m" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(contacts) != 1 || contacts[0].DisplayName() != "Rudo" {
		t.Errorf("contacts = %+v", contacts)
	}
}

func TestContactDisplayNameFallsBackToPhone(t *testing.T) {
	c := Contact{WhatsappID: "263771234567"}
	if c.DisplayName() != "263771234567" {
		t.Errorf("DisplayName = %q", c.DisplayName())
	}
}

func TestSendTextPayloadAndDecode(t *testing.T) {
	var got map[string]any
	c := testCRM(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":99,"contact":7,"direction":"out","text_content":"hello","status":"sent"}`))
	})

	msg, err := c.SendText(context.Background(), 7, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if got["message_type"] != "text" {
		t.Errorf("message_type = %v", got["message_type"])
	}
	payload, _ := got["content_payload"].(map[string]any)
	if payload["body"] != "hello" {
		t.Errorf("content_payload = %v", got["content_payload"])
	}
	if msg.ID != "99" {
		t.Errorf("numeric server id decoded as %q, want 99", msg.ID)
	}
	if msg.Status != "sent" {
		t.Errorf("status = %q", msg.Status)
	}
}

func TestContactMessagesBareArray(t *testing.T) {
	c := testCRM(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm-api/conversations/contacts/5/messages/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"id":"1","direction":"in","text_content":"hi"}]`))
	})

	msgs, err := c.ContactMessages(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].TextContent != "hi" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestDashboardSummary(t *testing.T) {
	c := testCRM(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stats_cards":{"total_contacts":120,"pending_human_handovers":3},"system_status":"Operational"}`))
	})

	s, err := c.DashboardSummary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Cards.TotalContacts != 120 || s.Cards.PendingHumanHandovers != 3 {
		t.Errorf("cards = %+v", s.Cards)
	}
	if s.SystemStatus != "Operational" {
		t.Errorf("system status = %q", s.SystemStatus)
	}
}

func TestEventCRUDPaths(t *testing.T) {
	var paths []string
	var methods []string
	c := testCRM(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		methods = append(methods, r.Method)
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			_, _ = w.Write([]byte(`{"id":4,"title":"Youth Camp","description":"x","start_time":"2024-06-01T09:00:00Z","is_active":true}`))
		}
	})

	ctx := context.Background()
	if _, err := c.CreateEvent(ctx, Event{Title: "Youth Camp"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.UpdateEvent(ctx, 4, Event{Title: "Youth Camp"}); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteEvent(ctx, 4); err != nil {
		t.Fatal(err)
	}

	wantPaths := []string{
		"/crm-api/church-services/events/",
		"/crm-api/church-services/events/4/",
		"/crm-api/church-services/events/4/",
	}
	wantMethods := []string{"POST", "PUT", "DELETE"}
	for i := range wantPaths {
		if paths[i] != wantPaths[i] || methods[i] != wantMethods[i] {
			t.Errorf("call %d = %s %s, want %s %s", i, methods[i], paths[i], wantMethods[i], wantPaths[i])
		}
	}
}

func TestDownloadReportQuery(t *testing.T) {
	c := testCRM(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "contacts" {
			t.Errorf("type = %q", r.URL.Query().Get("type"))
		}
		w.Header().Set("Content-Disposition", `attachment; filename="contacts.csv"`)
		_, _ = w.Write([]byte("a,b\n"))
	})

	name, data, err := c.DownloadReport(context.Background(), "contacts", nil)
	if err != nil {
		t.Fatal(err)
	}
	if name != "contacts.csv" || len(data) == 0 {
		t.Errorf("name=%q len=%d", name, len(data))
	}
}

func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{`123`, "123"},
		{`"tmp-abc"`, "tmp-abc"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var id ID
		if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if id != tt.want {
			t.Errorf("ID(%s) = %q, want %q", tt.in, id, tt.want)
		}
	}
}
