// Package crm is the typed API surface over the gateway: one method per
// backend endpoint, all under the /crm-api/ prefix.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/limcrm/crmterm/internal/gateway"
)

// Client wraps the gateway with typed endpoint methods.
type Client struct {
	gw *gateway.Client
}

// NewClient creates a CRM API client on top of the gateway.
func NewClient(gw *gateway.Client) *Client {
	return &Client{gw: gw}
}

// Login exchanges credentials for a JWT pair.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	raw, err := c.gw.Call(ctx, "/crm-api/auth/token/", gateway.CallOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"username": username, "password": password},
	})
	if err != nil {
		return nil, err
	}
	var pair TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return nil, fmt.Errorf("decode token pair: %w", err)
	}
	return &pair, nil
}

// ListContacts fetches the contact inbox, optionally filtered by a search
// term. The result is a wholesale snapshot; callers replace their state.
func (c *Client) ListContacts(ctx context.Context, search string) ([]Contact, error) {
	endpoint := "/crm-api/conversations/contacts/"
	if search != "" {
		endpoint = gateway.JoinQuery(endpoint, url.Values{"search": {search}})
	}
	page, err := c.gw.CallPage(ctx, endpoint, gateway.CallOptions{})
	if err != nil {
		return nil, err
	}
	return gateway.DecodeResults[Contact](page)
}

// ContactMessages fetches the message page for one contact, newest first as
// the backend orders it.
func (c *Client) ContactMessages(ctx context.Context, contactID int64) ([]Message, error) {
	endpoint := fmt.Sprintf("/crm-api/conversations/contacts/%d/messages/", contactID)
	page, err := c.gw.CallPage(ctx, endpoint, gateway.CallOptions{})
	if err != nil {
		return nil, err
	}
	return gateway.DecodeResults[Message](page)
}

// SendText creates an outgoing text message and returns the server record.
func (c *Client) SendText(ctx context.Context, contactID int64, body string) (*Message, error) {
	raw, err := c.gw.Call(ctx, "/crm-api/conversations/messages/", gateway.CallOptions{
		Method: http.MethodPost,
		Body: map[string]any{
			"contact":         contactID,
			"message_type":    "text",
			"content_payload": map[string]string{"body": body},
		},
	})
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode sent message: %w", err)
	}
	return &msg, nil
}

// ToggleIntervention flips the needs-human-intervention flag on a contact.
func (c *Client) ToggleIntervention(ctx context.Context, contactID int64) error {
	endpoint := fmt.Sprintf("/crm-api/conversations/contacts/%d/toggle-intervention/", contactID)
	_, err := c.gw.Call(ctx, endpoint, gateway.CallOptions{Method: http.MethodPost})
	return err
}

// ToggleBlock flips the blocked flag on a contact.
func (c *Client) ToggleBlock(ctx context.Context, contactID int64) error {
	endpoint := fmt.Sprintf("/crm-api/conversations/contacts/%d/toggle-block/", contactID)
	_, err := c.gw.Call(ctx, endpoint, gateway.CallOptions{Method: http.MethodPost})
	return err
}

// DashboardSummary fetches the stats summary payload.
func (c *Client) DashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	raw, err := c.gw.Call(ctx, "/crm-api/stats/summary/", gateway.CallOptions{})
	if err != nil {
		return nil, err
	}
	var summary DashboardSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &summary, nil
}

// MessageVolume fetches the per-day message volume series.
func (c *Client) MessageVolume(ctx context.Context, days int) ([]DailyVolume, error) {
	endpoint := gateway.JoinQuery("/crm-api/stats/messages/", url.Values{"days": {fmt.Sprint(days)}})
	page, err := c.gw.CallPage(ctx, endpoint, gateway.CallOptions{})
	if err != nil {
		return nil, err
	}
	return gateway.DecodeResults[DailyVolume](page)
}

// ListEvents fetches all events.
func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	page, err := c.gw.CallPage(ctx, "/crm-api/church-services/events/", gateway.CallOptions{})
	if err != nil {
		return nil, err
	}
	return gateway.DecodeResults[Event](page)
}

// CreateEvent creates an event and returns the stored record.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (*Event, error) {
	return c.writeEvent(ctx, "/crm-api/church-services/events/", http.MethodPost, ev)
}

// UpdateEvent replaces an event by id.
func (c *Client) UpdateEvent(ctx context.Context, id int64, ev Event) (*Event, error) {
	endpoint := fmt.Sprintf("/crm-api/church-services/events/%d/", id)
	return c.writeEvent(ctx, endpoint, http.MethodPut, ev)
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	endpoint := fmt.Sprintf("/crm-api/church-services/events/%d/", id)
	_, err := c.gw.Call(ctx, endpoint, gateway.CallOptions{Method: http.MethodDelete})
	return err
}

func (c *Client) writeEvent(ctx context.Context, endpoint, method string, ev Event) (*Event, error) {
	raw, err := c.gw.Call(ctx, endpoint, gateway.CallOptions{Method: method, Body: ev})
	if err != nil {
		return nil, err
	}
	var stored Event
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &stored, nil
}

// ListMinistries fetches all ministries.
func (c *Client) ListMinistries(ctx context.Context) ([]Ministry, error) {
	page, err := c.gw.CallPage(ctx, "/crm-api/church-services/ministries/", gateway.CallOptions{})
	if err != nil {
		return nil, err
	}
	return gateway.DecodeResults[Ministry](page)
}

// CreateMinistry creates a ministry and returns the stored record.
func (c *Client) CreateMinistry(ctx context.Context, m Ministry) (*Ministry, error) {
	return c.writeMinistry(ctx, "/crm-api/church-services/ministries/", http.MethodPost, m)
}

// UpdateMinistry replaces a ministry by id.
func (c *Client) UpdateMinistry(ctx context.Context, id int64, m Ministry) (*Ministry, error) {
	endpoint := fmt.Sprintf("/crm-api/church-services/ministries/%d/", id)
	return c.writeMinistry(ctx, endpoint, http.MethodPut, m)
}

// DeleteMinistry removes a ministry.
func (c *Client) DeleteMinistry(ctx context.Context, id int64) error {
	endpoint := fmt.Sprintf("/crm-api/church-services/ministries/%d/", id)
	_, err := c.gw.Call(ctx, endpoint, gateway.CallOptions{Method: http.MethodDelete})
	return err
}

func (c *Client) writeMinistry(ctx context.Context, endpoint, method string, m Ministry) (*Ministry, error) {
	raw, err := c.gw.Call(ctx, endpoint, gateway.CallOptions{Method: method, Body: m})
	if err != nil {
		return nil, err
	}
	var stored Ministry
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode ministry: %w", err)
	}
	return &stored, nil
}

// ListSermons fetches sermons, optionally filtered by a search term.
func (c *Client) ListSermons(ctx context.Context, search string) ([]Sermon, error) {
	endpoint := "/crm-api/church-services/sermons/"
	if search != "" {
		endpoint = gateway.JoinQuery(endpoint, url.Values{"search": {search}})
	}
	page, err := c.gw.CallPage(ctx, endpoint, gateway.CallOptions{})
	if err != nil {
		return nil, err
	}
	return gateway.DecodeResults[Sermon](page)
}

// DownloadReport fetches a report export and returns its filename and bytes.
func (c *Client) DownloadReport(ctx context.Context, reportType string, params url.Values) (string, []byte, error) {
	values := url.Values{"type": {reportType}}
	for k, vs := range params {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	return c.gw.Download(ctx, gateway.JoinQuery("/crm-api/customer-data/reports/", values))
}
