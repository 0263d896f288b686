package crm

import (
	"bytes"
	"encoding/json"
	"time"
)

// Message direction values.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Delivery status values for outgoing messages.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// ID is a message identifier. The backend issues numeric ids; the client
// generates "tmp-" prefixed placeholders for optimistic records, so the type
// accepts both JSON shapes.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	*id = ID(data)
	return nil
}

func (id ID) String() string { return string(id) }

// Contact is a conversation partner as the backend reports it. The client
// treats it read-only: each contact list fetch supersedes the previous one.
type Contact struct {
	ID                 int64      `json:"id"`
	WhatsappID         string     `json:"whatsapp_id"`
	Name               string     `json:"name"`
	LastMessagePreview string     `json:"last_message_preview"`
	UnreadCount        int        `json:"unread_count"`
	LastSeen           *time.Time `json:"last_seen"`
	NeedsIntervention  bool       `json:"needs_human_intervention"`
	IsBlocked          bool       `json:"is_blocked"`
}

// DisplayName returns the contact name, falling back to the phone identifier.
func (c Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.WhatsappID
}

// Message is one entry in a conversation. Timestamp stays nil while an
// optimistic record awaits server confirmation.
type Message struct {
	ID          ID         `json:"id"`
	Contact     int64      `json:"contact"`
	Direction   string     `json:"direction"`
	MessageType string     `json:"message_type"`
	TextContent string     `json:"text_content"`
	Timestamp   *time.Time `json:"timestamp"`
	Status      string     `json:"status"`
}

// TokenPair is the JWT pair from the token endpoint.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// SummaryCards holds the dashboard stat card counters.
type SummaryCards struct {
	ActiveConversations   int    `json:"active_conversations_count"`
	NewContactsToday      int    `json:"new_contacts_today"`
	TotalContacts         int    `json:"total_contacts"`
	MessagesSent24h       int    `json:"messages_sent_24h"`
	MessagesReceived24h   int    `json:"messages_received_24h"`
	PendingHumanHandovers int    `json:"pending_human_handovers"`
	ActiveConfigName      string `json:"meta_config_active_name"`
}

// DailyVolume is one point of the message volume chart.
type DailyVolume struct {
	Date     string `json:"date"`
	Incoming int    `json:"incoming_messages"`
	Outgoing int    `json:"outgoing_messages"`
	Total    int    `json:"total_messages"`
}

// DashboardSummary is the stats summary payload.
type DashboardSummary struct {
	Cards        SummaryCards `json:"stats_cards"`
	SystemStatus string       `json:"system_status"`
	ChartsData   struct {
		ConversationTrends []DailyVolume `json:"conversation_trends"`
	} `json:"charts_data"`
}

// Event is a church event managed through the events CRUD screens.
type Event struct {
	ID          int64      `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Location    string     `json:"location"`
	IsActive    bool       `json:"is_active"`
}

// Ministry is a ministry managed through the ministries CRUD screens.
type Ministry struct {
	ID              int64  `json:"id,omitempty"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	LeaderName      string `json:"leader_name"`
	ContactInfo     string `json:"contact_info"`
	MeetingSchedule string `json:"meeting_schedule"`
	IsActive        bool   `json:"is_active"`
}

// Sermon is a published sermon record.
type Sermon struct {
	ID          int64  `json:"id,omitempty"`
	Title       string `json:"title"`
	Preacher    string `json:"preacher"`
	SermonDate  string `json:"sermon_date"`
	VideoLink   string `json:"video_link"`
	AudioLink   string `json:"audio_link"`
	Description string `json:"description"`
	IsPublished bool   `json:"is_published"`
}
