package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/limcrm/crmterm/internal/crm"
)

// ContactList is the contact table with the search field above it.
type ContactList struct {
	*tview.Flex
	Table    *tview.Table
	Search   *tview.InputField
	contacts []crm.Contact
}

// NewContactList creates the contact list view.
func NewContactList() *ContactList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Contacts ")

	search := tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(search, 1, 0, false).
		AddItem(table, 0, 1, true)

	return &ContactList{Flex: flex, Table: table, Search: search}
}

// Update replaces the table contents with a fresh contact snapshot.
func (cl *ContactList) Update(contacts []crm.Contact) {
	cl.contacts = contacts
	cl.Table.Clear()

	cl.Table.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.Table.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.Table.SetCell(0, 2, tview.NewTableCell(" Last Seen").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, c := range contacts {
		row := i + 1
		name := c.DisplayName()
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, c.UnreadCount)
		}
		if c.NeedsIntervention {
			name = "[red]![-] " + name
		}
		if c.IsBlocked {
			name = "[gray]x[-] " + name
		}

		cl.Table.SetCell(row, 0, tview.NewTableCell(" "+name).SetMaxWidth(30).SetExpansion(1))
		cl.Table.SetCell(row, 1, tview.NewTableCell(" "+c.LastMessagePreview).SetMaxWidth(40).SetExpansion(2))
		cl.Table.SetCell(row, 2, tview.NewTableCell(" "+formatLastSeen(c.LastSeen)).SetMaxWidth(12))
	}
}

// Selected returns the contact under the cursor, zero when none.
func (cl *ContactList) Selected() (crm.Contact, bool) {
	row, _ := cl.Table.GetSelection()
	idx := row - 1 // header
	if idx >= 0 && idx < len(cl.contacts) {
		return cl.contacts[idx], true
	}
	return crm.Contact{}, false
}

func formatLastSeen(t *time.Time) string {
	if t == nil {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
