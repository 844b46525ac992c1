// Package notification holds per-user mailboxes, display preferences and
// the set of transport request ids that were already handled.
package notification

import (
	"sort"
	"strings"
	"time"

	"github.com/xraph/bits/store"
)

// TimestampLayout renders as "HH:MM on MM/DD/YY".
const TimestampLayout = "15:04 on 01/02/06"

// Welcome is left in an empty mailbox when the user checks their balance.
const Welcome = "Welcome! No new notifications."

// Entry is one mailbox message.
type Entry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Format renders the entry with its timestamp prefix in loc.
func (e Entry) Format(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return e.Time.In(loc).Format(TimestampLayout) + " - " + e.Message
}

// Mailbox is a user's append-only queue, drained by the request layer.
type Mailbox []Entry

// MailboxResource is the template for per-user mailboxes. Use MailboxFor.
var MailboxResource = store.Define[Mailbox](store.Notifications, "mailbox", 1)

// MailboxFor returns the mailbox resource of user.
func MailboxFor(user string) store.Resource[Mailbox] {
	return MailboxResource.At(store.NotificationsFor(user))
}

// Add appends message at t.
func (m *Mailbox) Add(t time.Time, message string) {
	*m = append(*m, Entry{Time: t.UTC(), Message: message})
}

// Lines renders every entry in order.
func (m Mailbox) Lines(loc *time.Location) []string {
	out := make([]string, 0, len(m))
	for _, e := range m {
		out = append(out, e.Format(loc))
	}
	return out
}

// Text renders the mailbox as newline separated lines.
func (m Mailbox) Text(loc *time.Location) string {
	return strings.Join(m.Lines(loc), "\n")
}

// Preference keys and defaults.
const (
	KeyTheme = "theme"
	KeyMute  = "mute"

	DefaultTheme = "blue"
	DefaultMute  = "False"
)

// Preferences are free-form per-user display settings.
type Preferences map[string]string

// PreferencesResource is the template for per-user preferences. Use
// PreferencesFor.
var PreferencesResource = store.Define[Preferences](store.Preferences, "preferences", 1)

// PreferencesFor returns the preferences resource of user.
func PreferencesFor(user string) store.Resource[Preferences] {
	return PreferencesResource.At(store.PreferencesFor(user))
}

// DefaultPreferences returns a fresh default set.
func DefaultPreferences() Preferences {
	return Preferences{KeyTheme: DefaultTheme, KeyMute: DefaultMute}
}

// WithDefaults fills every missing key from the defaults and reports
// whether anything was added.
func (p *Preferences) WithDefaults() bool {
	if *p == nil {
		*p = make(Preferences)
	}
	changed := false
	for k, v := range DefaultPreferences() {
		if _, ok := (*p)[k]; !ok {
			(*p)[k] = v
			changed = true
		}
	}
	return changed
}

// Processed records transport request ids already handled, with the time
// they were marked.
type Processed map[string]time.Time

// ProcessedResource is the persisted processed-id set.
var ProcessedResource = store.Define[Processed](store.Processed, "processed", 1)

// Mark adds id and reports whether it was new.
func (p *Processed) Mark(id string, t time.Time) bool {
	if *p == nil {
		*p = make(Processed)
	}
	if _, seen := (*p)[id]; seen {
		return false
	}
	(*p)[id] = t.UTC()
	return true
}

// Has reports whether id was already processed.
func (p Processed) Has(id string) bool {
	_, ok := p[id]
	return ok
}

// IDs lists every processed id, sorted.
func (p Processed) IDs() []string {
	out := make([]string, 0, len(p))
	for id := range p {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
