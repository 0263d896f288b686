// Package stream delivers live conversation updates over the backend's
// websocket feed. One watcher per open conversation; when the conversation
// changes the old watcher is cancelled and a new one dialed.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/limcrm/crmterm/internal/bus"
	"github.com/limcrm/crmterm/internal/crm"
)

// TokenProvider supplies the current access token for the websocket
// query-string auth the backend expects.
type TokenProvider interface {
	Token() string
}

// Watcher follows a single conversation's websocket feed and republishes
// incoming messages on the bus as message.received events.
type Watcher struct {
	baseURL string
	tokens  TokenProvider
	bus     *bus.Bus
	logger  *zap.Logger
	dialer  *websocket.Dialer
}

// NewWatcher creates a watcher. baseURL is the API origin (http or https);
// the scheme is rewritten to ws/wss when dialing.
func NewWatcher(baseURL string, tokens TokenProvider, b *bus.Bus, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		bus:     b,
		logger:  logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (w *Watcher) endpoint(contactID int64) (string, error) {
	u, err := url.Parse(w.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = fmt.Sprintf("/ws/conversations/%d/", contactID)
	q := url.Values{}
	q.Set("token", w.tokens.Token())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Watch dials the feed for one conversation and blocks reading it until the
// context is cancelled or the connection drops. There is no reconnect: the
// caller decides whether a dropped feed warrants a fresh Watch.
func (w *Watcher) Watch(ctx context.Context, contactID int64) error {
	endpoint, err := w.endpoint(contactID)
	if err != nil {
		return err
	}

	conn, resp, err := w.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial conversation feed: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial conversation feed: %w", err)
	}
	defer conn.Close()

	w.logger.Info("conversation feed open", zap.Int64("contact", contactID))

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("conversation feed closed", zap.Int64("contact", contactID), zap.Error(err))
			return err
		}
		w.dispatch(contactID, data)
	}
}

func (w *Watcher) dispatch(contactID int64, data []byte) {
	var frame struct {
		Type    string          `json:"type"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		w.logger.Warn("bad feed frame", zap.Error(err))
		return
	}

	// Some frames carry the message at the top level, others under "message".
	payload := frame.Message
	if len(payload) == 0 {
		payload = data
	}
	var msg crm.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		w.logger.Warn("bad feed message", zap.Error(err))
		return
	}
	if msg.Contact == 0 {
		msg.Contact = contactID
	}

	if w.bus != nil {
		w.bus.Publish(bus.Event{
			Kind:      "message.received",
			Timestamp: time.Now(),
			Payload:   msg,
		})
	}
}
