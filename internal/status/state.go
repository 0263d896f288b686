package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/limcrm/crmterm/internal/bus"
)

// State represents a client session state.
type State string

const (
	Booting        State = "BOOTING"
	LoginRequired  State = "LOGIN_REQUIRED"
	Authenticating State = "AUTHENTICATING"
	Ready          State = "READY"
	Degraded       State = "DEGRADED"
	Error          State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:        {LoginRequired, Authenticating, Ready, Error},
	LoginRequired:  {Authenticating, Error},
	Authenticating: {Ready, LoginRequired, Error},
	Ready:          {Degraded, LoginRequired, Error},
	Degraded:       {Ready, LoginRequired, Error},
	Error:          {Booting},
}

// Machine tracks and enforces client session state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "session.status_changed",
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// RequestFailed degrades a Ready session after a failed backend call.
// Sessions in auth flows keep their state; the login path owns those.
func (m *Machine) RequestFailed() {
	if m.Current() == Ready {
		_ = m.Transition(Degraded)
	}
}

// RequestSucceeded recovers a Degraded session on the next good call.
func (m *Machine) RequestSucceeded() {
	if m.Current() == Degraded {
		_ = m.Transition(Ready)
	}
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
