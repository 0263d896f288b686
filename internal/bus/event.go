package bus

import "time"

// Event represents a client-side domain event published on the bus.
//
// Kinds in use:
//
//	notify.error / notify.info  - user-facing toast, payload Notice
//	auth.expired                - session credential rejected, forces login
//	message.upserted            - a message appeared or changed in a thread
//	message.send_ack            - optimistic send confirmed by the server
//	message.send_failed         - optimistic send rejected or unreachable
//	message.received            - inbound message from the live stream
//	session.status_changed      - client state machine transition
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Notice is the payload for notify.* events rendered as toasts.
type Notice struct {
	Level string // "error" or "info"
	Text  string
}
