package inbox

import "github.com/limcrm/crmterm/internal/crm"

// Outcome is the server's answer to an optimistic send. A nil Confirmed
// record means the send failed.
type Outcome struct {
	Confirmed *crm.Message
}

// Reconcile resolves an optimistic record against a send outcome and returns
// a new sequence. The record keeps its position: on success it is swapped
// for the server record in place (falling back to the optimistic timestamp
// when the server omitted one, and to status "sent" when the server omitted
// that); on failure its status flips to failed. No other entry is touched,
// and an unknown temporary id leaves the sequence unchanged.
func Reconcile(seq []crm.Message, tempID crm.ID, outcome Outcome) []crm.Message {
	idx := -1
	for i := range seq {
		if seq[i].ID == tempID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return seq
	}

	out := make([]crm.Message, len(seq))
	copy(out, seq)

	if outcome.Confirmed == nil {
		out[idx].Status = crm.StatusFailed
		return out
	}

	confirmed := *outcome.Confirmed
	if confirmed.Timestamp == nil {
		confirmed.Timestamp = out[idx].Timestamp
	}
	if confirmed.Status == "" {
		confirmed.Status = crm.StatusSent
	}
	if confirmed.Contact == 0 {
		confirmed.Contact = out[idx].Contact
	}
	out[idx] = confirmed
	return out
}
