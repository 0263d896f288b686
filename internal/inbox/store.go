// Package inbox holds the in-memory conversation state behind the messaging
// screens: the contact list and the open thread, with optimistic sends that
// show up before the server answers.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/limcrm/crmterm/internal/bus"
	"github.com/limcrm/crmterm/internal/crm"
	"github.com/limcrm/crmterm/internal/gateway"
	"github.com/limcrm/crmterm/internal/store"
	"go.uber.org/zap"
)

// ErrEmptyMessage is returned when a send is attempted with no text.
var ErrEmptyMessage = errors.New("message text is empty")

// Store is the observable state behind the conversation screens. Loads
// replace state wholesale; sends mutate optimistically and reconcile
// against the server response in place.
type Store struct {
	mu sync.RWMutex

	api    *crm.Client
	cache  *store.DB // nil disables the local cache
	bus    *bus.Bus
	logger *zap.Logger

	contacts        []crm.Contact
	activeContact   int64
	messages        []crm.Message
	loadingContacts bool
	loadingMessages bool
}

// NewStore creates an inbox store. cache may be nil, bus may be nil.
func NewStore(api *crm.Client, cache *store.DB, b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		api:    api,
		cache:  cache,
		bus:    b,
		logger: logger,
	}
}

// SeedFromCache paints the last known contact list before any network
// activity. Errors are logged, never surfaced: the cache is best-effort.
func (s *Store) SeedFromCache() {
	if s.cache == nil {
		return
	}
	contacts, err := s.cache.CachedContacts()
	if err != nil {
		s.logger.Warn("cache read failed", zap.Error(err))
		return
	}
	if len(contacts) == 0 {
		return
	}
	s.mu.Lock()
	if s.contacts == nil {
		s.contacts = contacts
	}
	s.mu.Unlock()
}

// LoadContacts fetches the contact list, optionally filtered, and replaces
// the in-memory snapshot wholesale. On failure the previous snapshot stays.
func (s *Store) LoadContacts(ctx context.Context, search string) error {
	s.setLoading(&s.loadingContacts, true)
	defer s.setLoading(&s.loadingContacts, false)

	contacts, err := s.api.ListContacts(ctx, search)
	if err != nil {
		s.logger.Warn("load contacts failed", zap.String("search", search), zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.contacts = contacts
	s.mu.Unlock()

	if s.cache != nil && search == "" {
		if err := s.cache.ReplaceContacts(contacts); err != nil {
			s.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	return nil
}

// LoadMessages opens a conversation: it fetches the newest message page,
// reverses it so the UI renders oldest-to-newest, and replaces the thread
// wholesale. On failure the previous thread stays.
func (s *Store) LoadMessages(ctx context.Context, contactID int64) error {
	s.setLoading(&s.loadingMessages, true)
	defer s.setLoading(&s.loadingMessages, false)

	msgs, err := s.api.ContactMessages(ctx, contactID)
	if err != nil {
		s.logger.Warn("load messages failed", zap.Int64("contact", contactID), zap.Error(err))
		return err
	}

	// Backend orders newest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	s.mu.Lock()
	s.activeContact = contactID
	s.messages = msgs
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.ReplaceThread(contactID, msgs); err != nil {
			s.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	return nil
}

// OpenCached switches the active thread to the cached sequence for a
// contact, for instant paint while LoadMessages is in flight.
func (s *Store) OpenCached(contactID int64) {
	if s.cache == nil {
		return
	}
	msgs, err := s.cache.CachedThread(contactID)
	if err != nil || len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	s.activeContact = contactID
	s.messages = msgs
	s.mu.Unlock()
}

// SendMessage appends an optimistic record for the open conversation and
// reconciles it once the server answers. The record is visible (and the
// composer cleared by the caller) before any network activity; on failure
// it stays in place marked failed for manual retry.
func (s *Store) SendMessage(ctx context.Context, contactID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	now := time.Now()
	tempID := crm.ID("tmp-" + uuid.New().String())
	optimistic := crm.Message{
		ID:          tempID,
		Contact:     contactID,
		Direction:   crm.DirectionOut,
		MessageType: "text",
		TextContent: text,
		Timestamp:   &now,
		Status:      crm.StatusPending,
	}

	s.mu.Lock()
	s.activeContact = contactID
	s.messages = append(s.messages, optimistic)
	s.mu.Unlock()
	s.publish("message.upserted", string(tempID))

	sent, err := s.api.SendText(ctx, contactID, text)
	if err != nil {
		s.reconcile(tempID, Outcome{})
		s.publish("message.send_failed", string(tempID))
		// The gateway already toasted the API error; only transportless
		// failures need a toast here.
		if !IsNotified(err) {
			s.bus.NotifyError("Message failed to send")
		}
		return err
	}

	s.reconcile(tempID, Outcome{Confirmed: sent})
	s.publish("message.send_ack", sent.ID.String())
	s.logger.Info("message sent",
		zap.String("temp_id", string(tempID)),
		zap.String("server_id", sent.ID.String()),
		zap.Int64("contact", contactID))
	return nil
}

// Ingest appends a message delivered over the live feed to the open thread.
// Messages for other conversations and duplicates of already known ids are
// ignored; the next full load covers those.
func (s *Store) Ingest(msg crm.Message) bool {
	s.mu.Lock()
	if msg.Contact != s.activeContact {
		s.mu.Unlock()
		return false
	}
	for _, m := range s.messages {
		if m.ID != "" && m.ID == msg.ID {
			s.mu.Unlock()
			return false
		}
	}
	s.messages = append(s.messages, msg)
	msgs := s.messages
	contactID := s.activeContact
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.ReplaceThread(contactID, msgs); err != nil {
			s.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	return true
}

func (s *Store) reconcile(tempID crm.ID, outcome Outcome) {
	s.mu.Lock()
	s.messages = Reconcile(s.messages, tempID, outcome)
	msgs := s.messages
	contactID := s.activeContact
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.ReplaceThread(contactID, msgs); err != nil {
			s.logger.Warn("cache write failed", zap.Error(err))
		}
	}
}

func (s *Store) publish(kind, msgID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   map[string]string{"msg_id": msgID, "contact": fmt.Sprint(s.ActiveContact())},
	})
}

func (s *Store) setLoading(flag *bool, v bool) {
	s.mu.Lock()
	*flag = v
	s.mu.Unlock()
}

// Contacts returns a snapshot of the contact list.
func (s *Store) Contacts() []crm.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contacts
}

// Messages returns a snapshot of the open thread.
func (s *Store) Messages() []crm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages
}

// ActiveContact returns the id of the open conversation, 0 when none.
func (s *Store) ActiveContact() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeContact
}

// Loading reports whether a contact or message fetch is in flight.
func (s *Store) Loading() (contacts, messages bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadingContacts, s.loadingMessages
}

// IsNotified reports whether the gateway has already toasted this error.
func IsNotified(err error) bool {
	var apiErr *gateway.APIError
	return errors.As(err, &apiErr) && apiErr.Notified()
}
