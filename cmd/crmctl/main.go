// crmctl is the scripting companion to crmterm: one-shot commands against
// the CRM backend, sharing the same profile tree and token file.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/limcrm/crmterm/internal/auth"
	"github.com/limcrm/crmterm/internal/config"
	"github.com/limcrm/crmterm/internal/crm"
	"github.com/limcrm/crmterm/internal/gateway"
	"github.com/limcrm/crmterm/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	_ = godotenv.Load()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fatal(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if err := profile.EnsureDir(profileName); err != nil {
		fatal(err)
	}
	tokens, err := auth.NewTokenSource(profile.TokenPath(profileName))
	if err != nil {
		fatal(err)
	}
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		fatal(err)
	}
	gw, err := gateway.New(config.ResolveBaseURL(cfg), tokens, nil, nil)
	if err != nil {
		fatal(err)
	}
	c := crm.NewClient(gw)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "login":
		cmdLogin(ctx, c, tokens)
	case "contacts":
		cmdContacts(ctx, c, args[1:], *jsonFlag)
	case "messages":
		cmdMessages(ctx, c, args[1:], *jsonFlag)
	case "send":
		cmdSend(ctx, c, args[1:], *jsonFlag)
	case "stats":
		cmdStats(ctx, c, *jsonFlag)
	case "volume":
		cmdVolume(ctx, c, args[1:], *jsonFlag)
	case "events":
		cmdEvents(ctx, c, args[1:], *jsonFlag)
	case "ministries":
		cmdMinistries(ctx, c, args[1:], *jsonFlag)
	case "sermons":
		cmdSermons(ctx, c, args[1:], *jsonFlag)
	case "report":
		cmdReport(ctx, c, args[1:])
	case "status":
		cmdStatus(profileName, tokens, config.ResolveBaseURL(cfg), *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: crmctl [--profile NAME] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  login                    Sign in and store the token")
	fmt.Fprintln(os.Stderr, "  contacts [--search Q]    List conversation contacts")
	fmt.Fprintln(os.Stderr, "  messages <contact-id>    Show a conversation, oldest first")
	fmt.Fprintln(os.Stderr, "  send <contact-id> <text> Send a text message")
	fmt.Fprintln(os.Stderr, "  stats                    Show the dashboard summary")
	fmt.Fprintln(os.Stderr, "  volume [--days N]        Show daily message volume")
	fmt.Fprintln(os.Stderr, "  events <list|create|update|delete>     Manage church events")
	fmt.Fprintln(os.Stderr, "  ministries <list|create|update|delete> Manage ministries")
	fmt.Fprintln(os.Stderr, "  sermons [--search Q]     List sermons")
	fmt.Fprintln(os.Stderr, "  report <kind> [--out F]  Download a report file")
	fmt.Fprintln(os.Stderr, "  status                   Show profile and token state")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdLogin(ctx context.Context, c *crm.Client, tokens *auth.TokenSource) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Fprint(os.Stderr, "Username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		fatal(err)
	}
	username = strings.TrimSpace(username)

	fmt.Fprint(os.Stderr, "Password: ")
	var password string
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fatal(err)
		}
		password = string(raw)
	} else {
		line, err := reader.ReadString('\n')
		if err != nil {
			fatal(err)
		}
		password = strings.TrimSpace(line)
	}

	pair, err := c.Login(ctx, username, password)
	if err != nil {
		fatal(err)
	}
	if err := tokens.Set(auth.Credentials{Access: pair.Access, Refresh: pair.Refresh}); err != nil {
		fatal(err)
	}
	fmt.Println("Signed in.")
}

func cmdContacts(ctx context.Context, c *crm.Client, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("contacts", flag.ExitOnError)
	search := fs.String("search", "", "filter by name or phone")
	_ = fs.Parse(args)

	contacts, err := c.ListContacts(ctx, *search)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(contacts)
		return
	}
	if len(contacts) == 0 {
		fmt.Println("No contacts found.")
		return
	}
	for _, ct := range contacts {
		flags := ""
		if ct.NeedsIntervention {
			flags += " [handover]"
		}
		if ct.IsBlocked {
			flags += " [blocked]"
		}
		fmt.Printf("%-8d %-24s %s%s\n", ct.ID, ct.DisplayName(), ct.LastMessagePreview, flags)
	}
}

func cmdMessages(ctx context.Context, c *crm.Client, args []string, jsonOut bool) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: crmctl messages <contact-id>")
		os.Exit(1)
	}
	contactID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fatal(fmt.Errorf("bad contact id %q", args[0]))
	}

	msgs, err := c.ContactMessages(ctx, contactID)
	if err != nil {
		fatal(err)
	}
	// Backend orders newest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		who := "them"
		if m.Direction == crm.DirectionOut {
			who = "you"
		}
		ts := ""
		if m.Timestamp != nil {
			ts = m.Timestamp.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%-16s %-5s %s\n", ts, who, m.TextContent)
	}
}

func cmdSend(ctx context.Context, c *crm.Client, args []string, jsonOut bool) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: crmctl send <contact-id> <text>")
		os.Exit(1)
	}
	contactID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fatal(fmt.Errorf("bad contact id %q", args[0]))
	}

	msg, err := c.SendText(ctx, contactID, strings.Join(args[1:], " "))
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(msg)
		return
	}
	fmt.Printf("Sent. id=%s status=%s\n", msg.ID, msg.Status)
}

func cmdStats(ctx context.Context, c *crm.Client, jsonOut bool) {
	summary, err := c.DashboardSummary(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(summary)
		return
	}
	cards := summary.Cards
	fmt.Printf("System status:        %s\n", summary.SystemStatus)
	fmt.Printf("Active conversations: %d\n", cards.ActiveConversations)
	fmt.Printf("Total contacts:       %d\n", cards.TotalContacts)
	fmt.Printf("New contacts today:   %d\n", cards.NewContactsToday)
	fmt.Printf("Sent last 24h:        %d\n", cards.MessagesSent24h)
	fmt.Printf("Received last 24h:    %d\n", cards.MessagesReceived24h)
	fmt.Printf("Pending handovers:    %d\n", cards.PendingHumanHandovers)
}

func cmdReport(ctx context.Context, c *crm.Client, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: crmctl report <kind> [--out FILE]")
		os.Exit(1)
	}
	kind := args[0]
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	out := fs.String("out", "", "output file (default: server-suggested name)")
	_ = fs.Parse(args[1:])

	filename, data, err := c.DownloadReport(ctx, kind, nil)
	if err != nil {
		fatal(err)
	}
	target := *out
	if target == "" {
		target = filename
	}
	if target == "" {
		target = kind + "-report.csv"
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		fatal(err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", target, len(data))
}

func cmdStatus(profileName string, tokens *auth.TokenSource, baseURL string, jsonOut bool) {
	loggedIn := tokens.Token() != ""
	if jsonOut {
		outputJSON(map[string]any{
			"profile":   profileName,
			"base_url":  baseURL,
			"logged_in": loggedIn,
		})
		return
	}
	fmt.Printf("Profile:   %s\n", profileName)
	fmt.Printf("Base URL:  %s\n", baseURL)
	if loggedIn {
		fmt.Println("Token:     present")
	} else {
		fmt.Println("Token:     none (run: crmctl login)")
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func cmdVolume(ctx context.Context, c *crm.Client, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("volume", flag.ExitOnError)
	days := fs.Int("days", 7, "number of days to cover")
	_ = fs.Parse(args)

	series, err := c.MessageVolume(ctx, *days)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(series)
		return
	}
	for _, d := range series {
		fmt.Printf("%-12s in=%-5d out=%-5d total=%d\n", d.Date, d.Incoming, d.Outgoing, d.Total)
	}
}

func cmdEvents(ctx context.Context, c *crm.Client, args []string, jsonOut bool) {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		events, err := c.ListEvents(ctx)
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(events)
			return
		}
		if len(events) == 0 {
			fmt.Println("No events found.")
			return
		}
		for _, ev := range events {
			active := " "
			if ev.IsActive {
				active = "*"
			}
			fmt.Printf("%-8d %s %-28s %-16s %s\n", ev.ID, active, ev.Title,
				ev.StartTime.Local().Format("2006-01-02 15:04"), ev.Location)
		}
	case "create":
		ev := parseEventFlags(args[1:], crm.Event{IsActive: true})
		stored, err := c.CreateEvent(ctx, ev)
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(stored)
			return
		}
		fmt.Printf("Created event %d: %s\n", stored.ID, stored.Title)
	case "update":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: crmctl events update <id> [flags]")
			os.Exit(1)
		}
		id := parseID(args[1])
		existing := findEvent(ctx, c, id)
		stored, err := c.UpdateEvent(ctx, id, parseEventFlags(args[2:], existing))
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(stored)
			return
		}
		fmt.Printf("Updated event %d: %s\n", stored.ID, stored.Title)
	case "delete":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: crmctl events delete <id>")
			os.Exit(1)
		}
		id := parseID(args[1])
		if err := c.DeleteEvent(ctx, id); err != nil {
			fatal(err)
		}
		fmt.Printf("Deleted event %d\n", id)
	default:
		fmt.Fprintf(os.Stderr, "unknown events subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

// parseEventFlags layers command-line flags over base, so updates only
// change the fields given.
func parseEventFlags(args []string, base crm.Event) crm.Event {
	fs := flag.NewFlagSet("event", flag.ExitOnError)
	title := fs.String("title", base.Title, "event title")
	desc := fs.String("description", base.Description, "event description")
	start := fs.String("start", "", "start time (RFC3339 or YYYY-MM-DD)")
	location := fs.String("location", base.Location, "event location")
	active := fs.Bool("active", base.IsActive, "whether the event is active")
	_ = fs.Parse(args)

	ev := base
	ev.Title = *title
	ev.Description = *desc
	ev.Location = *location
	ev.IsActive = *active
	if *start != "" {
		ev.StartTime = parseWhen(*start)
	}
	return ev
}

func findEvent(ctx context.Context, c *crm.Client, id int64) crm.Event {
	events, err := c.ListEvents(ctx)
	if err != nil {
		fatal(err)
	}
	for _, ev := range events {
		if ev.ID == id {
			return ev
		}
	}
	fatal(fmt.Errorf("no event with id %d", id))
	return crm.Event{}
}

func cmdMinistries(ctx context.Context, c *crm.Client, args []string, jsonOut bool) {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		ministries, err := c.ListMinistries(ctx)
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(ministries)
			return
		}
		if len(ministries) == 0 {
			fmt.Println("No ministries found.")
			return
		}
		for _, m := range ministries {
			active := " "
			if m.IsActive {
				active = "*"
			}
			fmt.Printf("%-8d %s %-28s %-20s %s\n", m.ID, active, m.Name, m.LeaderName, m.MeetingSchedule)
		}
	case "create":
		m := parseMinistryFlags(args[1:], crm.Ministry{IsActive: true})
		stored, err := c.CreateMinistry(ctx, m)
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(stored)
			return
		}
		fmt.Printf("Created ministry %d: %s\n", stored.ID, stored.Name)
	case "update":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: crmctl ministries update <id> [flags]")
			os.Exit(1)
		}
		id := parseID(args[1])
		existing := findMinistry(ctx, c, id)
		stored, err := c.UpdateMinistry(ctx, id, parseMinistryFlags(args[2:], existing))
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(stored)
			return
		}
		fmt.Printf("Updated ministry %d: %s\n", stored.ID, stored.Name)
	case "delete":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: crmctl ministries delete <id>")
			os.Exit(1)
		}
		id := parseID(args[1])
		if err := c.DeleteMinistry(ctx, id); err != nil {
			fatal(err)
		}
		fmt.Printf("Deleted ministry %d\n", id)
	default:
		fmt.Fprintf(os.Stderr, "unknown ministries subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func parseMinistryFlags(args []string, base crm.Ministry) crm.Ministry {
	fs := flag.NewFlagSet("ministry", flag.ExitOnError)
	name := fs.String("name", base.Name, "ministry name")
	desc := fs.String("description", base.Description, "ministry description")
	leader := fs.String("leader", base.LeaderName, "leader name")
	contact := fs.String("contact", base.ContactInfo, "contact info")
	schedule := fs.String("schedule", base.MeetingSchedule, "meeting schedule")
	active := fs.Bool("active", base.IsActive, "whether the ministry is active")
	_ = fs.Parse(args)

	m := base
	m.Name = *name
	m.Description = *desc
	m.LeaderName = *leader
	m.ContactInfo = *contact
	m.MeetingSchedule = *schedule
	m.IsActive = *active
	return m
}

func findMinistry(ctx context.Context, c *crm.Client, id int64) crm.Ministry {
	ministries, err := c.ListMinistries(ctx)
	if err != nil {
		fatal(err)
	}
	for _, m := range ministries {
		if m.ID == id {
			return m
		}
	}
	fatal(fmt.Errorf("no ministry with id %d", id))
	return crm.Ministry{}
}

func cmdSermons(ctx context.Context, c *crm.Client, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("sermons", flag.ExitOnError)
	search := fs.String("search", "", "filter by title or preacher")
	_ = fs.Parse(args)

	sermons, err := c.ListSermons(ctx, *search)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(sermons)
		return
	}
	if len(sermons) == 0 {
		fmt.Println("No sermons found.")
		return
	}
	for _, s := range sermons {
		published := " "
		if s.IsPublished {
			published = "*"
		}
		fmt.Printf("%-8d %s %-36s %-20s %s\n", s.ID, published, s.Title, s.Preacher, s.SermonDate)
	}
}

func parseID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fatal(fmt.Errorf("bad id %q", arg))
	}
	return id
}

func parseWhen(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		fatal(fmt.Errorf("bad time %q (want RFC3339 or YYYY-MM-DD)", value))
	}
	return t
}
