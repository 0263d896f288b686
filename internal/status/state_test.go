package status

import (
	"testing"

	"github.com/limcrm/crmterm/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, LoginRequired},
		{Booting, Authenticating},
		{Booting, Error},
		{LoginRequired, Authenticating},
		{Authenticating, Ready},
		{Authenticating, LoginRequired},
		{Ready, Degraded},
		{Degraded, Ready},
		{Ready, LoginRequired},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, LoginRequired)
	// Cannot reach READY without authenticating first.
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(LOGIN_REQUIRED -> READY) should fail")
	}
	if m.Current() != LoginRequired {
		t.Errorf("state = %s, want LOGIN_REQUIRED (should not have changed)", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(LoginRequired); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != "session.status_changed" {
		t.Errorf("event kind = %q, want session.status_changed", evt.Kind)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != LoginRequired {
		t.Errorf("change = %v -> %v, want BOOTING -> LOGIN_REQUIRED", change.From, change.To)
	}
}

// TestFirstRunLifecycle simulates the complete first-run lifecycle:
// BOOTING → LOGIN_REQUIRED → AUTHENTICATING → READY
func TestFirstRunLifecycle(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{LoginRequired, Authenticating, Ready}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Ready {
		t.Errorf("final state = %s, want READY", m.Current())
	}
}

// TestReturningUserLifecycle simulates a returning user whose token file is
// still present: BOOTING → AUTHENTICATING → READY
func TestReturningUserLifecycle(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{Authenticating, Ready}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Ready {
		t.Errorf("final state = %s, want READY", m.Current())
	}
}

// TestDegradedRecoveryCycle verifies the network flap loop:
// READY → DEGRADED → READY
func TestDegradedRecoveryCycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Ready)

	steps := []State{Degraded, Ready}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Ready {
		t.Errorf("final state = %s, want READY", m.Current())
	}
}

// TestTokenRejectedFromReady verifies that an expired token from READY
// transitions to LOGIN_REQUIRED correctly.
func TestTokenRejectedFromReady(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Ready)

	if err := m.Transition(LoginRequired); err != nil {
		t.Fatalf("READY -> LOGIN_REQUIRED: %v", err)
	}
	if m.Current() != LoginRequired {
		t.Errorf("state = %s, want LOGIN_REQUIRED", m.Current())
	}
}

// TestRequestOutcomesDriveDegraded verifies the call-outcome hooks: a failed
// backend call degrades a READY session, the next good call recovers it, and
// sessions outside that pair are left alone.
func TestRequestOutcomesDriveDegraded(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Ready)

	m.RequestFailed()
	if m.Current() != Degraded {
		t.Fatalf("after failure: state = %s, want DEGRADED", m.Current())
	}
	m.RequestFailed()
	if m.Current() != Degraded {
		t.Errorf("repeated failure: state = %s, want DEGRADED", m.Current())
	}

	m.RequestSucceeded()
	if m.Current() != Ready {
		t.Fatalf("after recovery: state = %s, want READY", m.Current())
	}
	m.RequestSucceeded()
	if m.Current() != Ready {
		t.Errorf("repeated success: state = %s, want READY", m.Current())
	}
}

func TestRequestOutcomesIgnoreAuthStates(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, LoginRequired)

	m.RequestFailed()
	if m.Current() != LoginRequired {
		t.Errorf("failure during login: state = %s, want LOGIN_REQUIRED", m.Current())
	}
	m.RequestSucceeded()
	if m.Current() != LoginRequired {
		t.Errorf("success during login: state = %s, want LOGIN_REQUIRED", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:        {},
		LoginRequired:  {LoginRequired},
		Authenticating: {LoginRequired, Authenticating},
		Ready:          {Authenticating, Ready},
		Degraded:       {Authenticating, Ready, Degraded},
		Error:          {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
