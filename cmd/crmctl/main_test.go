package main

import (
	"testing"
	"time"

	"github.com/limcrm/crmterm/internal/crm"
)

func TestParseEventFlagsLayersOverBase(t *testing.T) {
	base := crm.Event{
		ID:          4,
		Title:       "Prayer Night",
		Description: "Weekly gathering",
		Location:    "Main Hall",
		StartTime:   time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		IsActive:    true,
	}

	ev := parseEventFlags([]string{"-title", "Prayer Evening", "-location", "Annex"}, base)

	if ev.Title != "Prayer Evening" || ev.Location != "Annex" {
		t.Errorf("flagged fields = %q / %q", ev.Title, ev.Location)
	}
	if ev.Description != "Weekly gathering" {
		t.Errorf("description = %q, want base value kept", ev.Description)
	}
	if !ev.StartTime.Equal(base.StartTime) {
		t.Errorf("start = %v, want base value kept", ev.StartTime)
	}
	if !ev.IsActive || ev.ID != 4 {
		t.Errorf("carried fields = active:%v id:%d", ev.IsActive, ev.ID)
	}
}

func TestParseMinistryFlagsLayersOverBase(t *testing.T) {
	base := crm.Ministry{Name: "Choir", LeaderName: "T. Moyo", MeetingSchedule: "Sat 10:00", IsActive: true}

	m := parseMinistryFlags([]string{"-leader", "R. Ncube", "-active=false"}, base)

	if m.LeaderName != "R. Ncube" {
		t.Errorf("leader = %q", m.LeaderName)
	}
	if m.IsActive {
		t.Error("active flag not applied")
	}
	if m.Name != "Choir" || m.MeetingSchedule != "Sat 10:00" {
		t.Errorf("base fields lost: %+v", m)
	}
}

func TestParseWhen(t *testing.T) {
	got := parseWhen("2026-04-12T09:30:00Z")
	want := time.Date(2026, 4, 12, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("RFC3339 parse = %v, want %v", got, want)
	}

	day := parseWhen("2026-04-12")
	if day.Year() != 2026 || day.Month() != time.April || day.Day() != 12 {
		t.Errorf("date parse = %v", day)
	}
}
