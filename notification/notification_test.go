package notification

import (
	"testing"
	"time"
)

func TestEntryFormat(t *testing.T) {
	e := Entry{Time: time.Date(2026, 7, 4, 9, 5, 0, 0, time.UTC), Message: "You sent 10.0 bits to bob"}
	want := "09:05 on 07/04/26 - You sent 10.0 bits to bob"
	if got := e.Format(time.UTC); got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestMailbox(t *testing.T) {
	var m Mailbox
	at := time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)
	m.Add(at, "one")
	m.Add(at.Add(time.Minute), "two")

	lines := m.Lines(time.UTC)
	if len(lines) != 2 || lines[1] != "15:05 on 01/02/26 - two" {
		t.Errorf("Lines = %v", lines)
	}
	if got := m.Text(time.UTC); got != "15:04 on 01/02/26 - one\n15:05 on 01/02/26 - two" {
		t.Errorf("Text = %q", got)
	}
}

func TestResourceNames(t *testing.T) {
	if got := MailboxFor("alice").Name; got != "notifications/alice" {
		t.Errorf("MailboxFor = %q", got)
	}
	if got := PreferencesFor("alice").Name; got != "preferences/alice" {
		t.Errorf("PreferencesFor = %q", got)
	}
}

func TestPreferencesDefaults(t *testing.T) {
	tests := []struct {
		name    string
		in      Preferences
		changed bool
		theme   string
	}{
		{"nil", nil, true, DefaultTheme},
		{"partial", Preferences{KeyTheme: "red"}, true, "red"},
		{"complete", Preferences{KeyTheme: "green", KeyMute: "True"}, false, "green"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			if got := p.WithDefaults(); got != tt.changed {
				t.Errorf("changed = %v, want %v", got, tt.changed)
			}
			if p[KeyTheme] != tt.theme || p[KeyMute] == "" {
				t.Errorf("prefs = %v", p)
			}
		})
	}
}

func TestProcessed(t *testing.T) {
	var p Processed
	if !p.Mark("42", time.Now()) {
		t.Fatal("first mark should be new")
	}
	if p.Mark("42", time.Now()) {
		t.Error("second mark should not be new")
	}
	p.Mark("7", time.Now())
	if !p.Has("7") || p.Has("8") {
		t.Error("unexpected Has result")
	}
	if ids := p.IDs(); len(ids) != 2 || ids[0] != "42" {
		t.Errorf("IDs = %v", ids)
	}
}
