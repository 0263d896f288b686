package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/limcrm/crmterm/internal/crm"
)

// MessageView renders the open conversation oldest to newest, with a
// delivery marker on outgoing messages.
type MessageView struct {
	*tview.TextView
}

// NewMessageView creates the thread view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Conversation ")

	return &MessageView{TextView: tv}
}

// SetContactName updates the title with the open contact's name.
func (mv *MessageView) SetContactName(name string) {
	mv.SetTitle(fmt.Sprintf(" %s ", name))
}

// Update re-renders the thread.
func (mv *MessageView) Update(msgs []crm.Message) {
	mv.Clear()

	for _, m := range msgs {
		sender := "Them"
		if m.Direction == crm.DirectionOut {
			sender = "You " + statusMarker(m.Status)
		}
		ts := ""
		if m.Timestamp != nil {
			ts = m.Timestamp.Local().Format("Jan 02 15:04")
		}
		_, _ = fmt.Fprintf(mv, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n", sender, ts, tview.Escape(m.TextContent))
	}

	mv.ScrollToEnd()
}

func statusMarker(status string) string {
	switch status {
	case crm.StatusPending:
		return "[yellow]…[-]"
	case crm.StatusFailed:
		return "[red]✗[-]"
	case crm.StatusDelivered, crm.StatusRead:
		return "[green]✓✓[-]"
	default:
		return "[green]✓[-]"
	}
}
