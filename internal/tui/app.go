// Package tui is the interactive terminal frontend: contact list, open
// conversation with optimistic sends, and the login form the session falls
// back to whenever the token stops working.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/limcrm/crmterm/internal/auth"
	"github.com/limcrm/crmterm/internal/bus"
	"github.com/limcrm/crmterm/internal/crm"
	"github.com/limcrm/crmterm/internal/debounce"
	"github.com/limcrm/crmterm/internal/inbox"
	"github.com/limcrm/crmterm/internal/status"
	"github.com/limcrm/crmterm/internal/stream"
	"github.com/limcrm/crmterm/internal/tui/keys"
	"github.com/limcrm/crmterm/internal/tui/views"
)

const searchDebounce = 300 * time.Millisecond

// App is the TUI shell.
type App struct {
	app   *tview.Application
	pages *tview.Pages

	api     *crm.Client
	store   *inbox.Store
	tokens  *auth.TokenSource
	machine *status.Machine
	bus     *bus.Bus
	watcher *stream.Watcher
	logger  *zap.Logger

	registry    *keys.Registry
	statusBar   *views.StatusBar
	contactList *views.ContactList
	msgView     *views.MessageView
	composer    *views.Composer
	loginView   *views.LoginView
	flash       Flash
	search      *debounce.Debouncer

	ctx         context.Context
	cancel      context.CancelFunc
	watchCancel context.CancelFunc
}

// NewApp wires the TUI together. watcher may be nil when live updates are
// unavailable.
func NewApp(api *crm.Client, store *inbox.Store, tokens *auth.TokenSource,
	machine *status.Machine, b *bus.Bus, watcher *stream.Watcher,
	profileName string, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:         tview.NewApplication(),
		pages:       tview.NewPages(),
		api:         api,
		store:       store,
		tokens:      tokens,
		machine:     machine,
		bus:         b,
		watcher:     watcher,
		logger:      logger,
		registry:    keys.NewRegistry(),
		statusBar:   views.NewStatusBar(),
		contactList: views.NewContactList(),
		msgView:     views.NewMessageView(),
		composer:    views.NewComposer(),
		loginView:   views.NewLoginView(),
		search:      debounce.New(searchDebounce),
		ctx:         ctx,
		cancel:      cancel,
	}

	a.statusBar.SetProfile(profileName)
	a.statusBar.SetState(string(machine.Current()))
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddPage("contacts", "search", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "/:search", Visible: true,
		Handler: func() { a.app.SetFocus(a.contactList.Search) },
	})
	a.registry.AddPage("contacts", "refresh", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:refresh", Visible: true,
		Handler: func() { a.refreshContacts(a.contactList.Search.GetText()) },
	})
	a.registry.AddPage("contacts", "intervention", &keys.Action{
		Rune: 't', Key: tcell.KeyRune,
		Description: "t:takeover", Visible: true,
		Handler: func() { a.toggleIntervention() },
	})
	a.registry.AddPage("contacts", "block", &keys.Action{
		Rune: 'b', Key: tcell.KeyRune,
		Description: "b:block", Visible: true,
		Handler: func() { a.toggleBlock() },
	})
}

func (a *App) setupCallbacks() {
	a.contactList.Table.SetSelectedFunc(func(row, col int) {
		if c, ok := a.contactList.Selected(); ok {
			a.openConversation(c)
		}
	})

	a.contactList.Search.SetChangedFunc(func(text string) {
		a.search.Trigger(func() { a.refreshContacts(text) })
	})
	a.contactList.Search.SetDoneFunc(func(key tcell.Key) {
		a.app.SetFocus(a.contactList.Table)
	})

	a.composer.SetOnSend(func(text string) {
		contactID := a.store.ActiveContact()
		if contactID == 0 {
			return
		}
		// Repaints ride the message.* bus events, toasts the notify.* ones.
		go func() {
			if err := a.store.SendMessage(a.ctx, contactID, text); err != nil && !errors.Is(err, inbox.ErrEmptyMessage) {
				a.logger.Warn("send failed", zap.Int64("contact", contactID), zap.Error(err))
			}
		}()
	})

	a.loginView.SetOnSubmit(func(username, password string) {
		a.loginView.ClearMessage()
		_ = a.machine.Transition(status.Authenticating)
		go func() {
			pair, err := a.api.Login(a.ctx, username, password)
			if err != nil {
				_ = a.machine.Transition(status.LoginRequired)
				a.app.QueueUpdateDraw(func() {
					a.loginView.ShowMessage(err.Error())
				})
				return
			}
			if err := a.tokens.Set(auth.Credentials{Access: pair.Access, Refresh: pair.Refresh}); err != nil {
				a.logger.Warn("token persist failed", zap.Error(err))
			}
			_ = a.machine.Transition(status.Ready)
			a.enterInbox()
		}()
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("login", a.loginView, true, false)
	a.pages.AddPage("contacts", a.contactList, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		page, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape && page == "chat" {
			a.stopWatch()
			a.pages.SwitchToPage("contacts")
			a.app.SetFocus(a.contactList.Table)
			return nil
		}

		// Text inputs keep normal key handling.
		switch a.app.GetFocus().(type) {
		case *tview.InputField:
			return event
		}
		if page == "login" {
			return event
		}

		if page == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.Handle(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) refreshContacts(query string) {
	go func() {
		if err := a.store.LoadContacts(a.ctx, query); err != nil {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.contactList.Update(a.store.Contacts())
		})
	}()
}

func (a *App) openConversation(c crm.Contact) {
	a.store.OpenCached(c.ID)
	a.msgView.SetContactName(c.DisplayName())
	a.msgView.Update(a.store.Messages())
	a.pages.SwitchToPage("chat")
	a.app.SetFocus(a.composer.InputField)
	a.startWatch(c.ID)

	go func() {
		if err := a.store.LoadMessages(a.ctx, c.ID); err != nil {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.Update(a.store.Messages())
		})
	}()
}

func (a *App) startWatch(contactID int64) {
	a.stopWatch()
	if a.watcher == nil {
		return
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.watchCancel = cancel
	go func() {
		if err := a.watcher.Watch(ctx, contactID); err != nil && ctx.Err() == nil {
			a.logger.Warn("live feed ended", zap.Int64("contact", contactID), zap.Error(err))
		}
	}()
}

func (a *App) stopWatch() {
	if a.watchCancel != nil {
		a.watchCancel()
		a.watchCancel = nil
	}
}

func (a *App) toggleIntervention() {
	c, ok := a.contactList.Selected()
	if !ok {
		return
	}
	go func() {
		if err := a.api.ToggleIntervention(a.ctx, c.ID); err != nil {
			return
		}
		a.bus.NotifyInfo("Handover toggled for " + c.DisplayName())
		a.refreshContacts(a.contactList.Search.GetText())
	}()
}

func (a *App) toggleBlock() {
	c, ok := a.contactList.Selected()
	if !ok {
		return
	}
	go func() {
		if err := a.api.ToggleBlock(a.ctx, c.ID); err != nil {
			return
		}
		a.bus.NotifyInfo("Block toggled for " + c.DisplayName())
		a.refreshContacts(a.contactList.Search.GetText())
	}()
}

func (a *App) enterInbox() {
	a.store.SeedFromCache()
	a.app.QueueUpdateDraw(func() {
		a.contactList.Update(a.store.Contacts())
		a.pages.SwitchToPage("contacts")
		a.app.SetFocus(a.contactList.Table)
	})
	a.refreshContacts("")
}

func (a *App) showLogin() {
	a.stopWatch()
	a.pages.SwitchToPage("login")
	a.app.SetFocus(a.loginView.Form())
}

// eventLoop mirrors bus traffic into the UI: toasts, forced logins, live
// messages, state changes.
func (a *App) eventLoop() {
	events, unsub := a.bus.Subscribe("", 64)
	defer unsub()

	for {
		select {
		case evt := <-events:
			a.handleEvent(evt)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case "notify.error", "notify.info":
		if n, ok := evt.Payload.(bus.Notice); ok {
			a.flash.Set(n.Text, 5*time.Second)
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.flash.Get())
			})
		}
	case "auth.expired":
		if a.machine.Current() != status.LoginRequired {
			_ = a.machine.Transition(status.LoginRequired)
		}
		a.app.QueueUpdateDraw(a.showLogin)
	case "message.received":
		msg, ok := evt.Payload.(crm.Message)
		if !ok || !a.store.Ingest(msg) {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.Update(a.store.Messages())
		})
	case "message.send_ack", "message.send_failed", "message.upserted":
		a.app.QueueUpdateDraw(func() {
			a.msgView.Update(a.store.Messages())
		})
	case "session.status_changed":
		if sc, ok := evt.Payload.(status.StatusChange); ok {
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetState(string(sc.To))
			})
		}
	}
}

// Run starts the TUI and blocks until quit.
func (a *App) Run() error {
	go a.eventLoop()

	if a.tokens.Token() == "" {
		_ = a.machine.Transition(status.LoginRequired)
		a.pages.SwitchToPage("login")
		a.app.SetFocus(a.loginView.Form())
	} else {
		_ = a.machine.Transition(status.Ready)
		a.store.SeedFromCache()
		a.contactList.Update(a.store.Contacts())
		a.refreshContacts("")
	}

	a.startClock()

	return a.app.Run()
}

// Stop tears the TUI down.
func (a *App) Stop() {
	a.search.Stop()
	a.cancel()
	a.app.Stop()
}

func (a *App) startClock() {
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		for {
			select {
			case <-ticker.C:
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetFlash(a.flash.Get())
				})
			case <-a.ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}
