// Package ratelimit implements sliding-window admission control for the
// natural-language translator.
//
// Every model has a global call history. The premium model additionally
// keeps a per-user history capped per hour. Histories are pruned to their
// window on every check and the pruned lists are persisted whatever the
// decision.
package ratelimit

import (
	"sort"
	"time"

	"github.com/xraph/bits/store"
)

// Window lengths.
const (
	UserWindow   = time.Hour
	MinuteWindow = time.Minute
	DayWindow    = 24 * time.Hour

	// Retention bounds how long any timestamp is kept by Purge.
	Retention = 30 * 24 * time.Hour
)

// Default model names, in the order they are tried.
const (
	ModelFlashPreview = "gemini-2.5-flash-preview-05-20"
	ModelFlash        = "gemini-2.0-flash"
	ModelFlashLite    = "gemini-2.0-flash-lite"
)

// Limits caps calls per window. A zero or negative value is unlimited.
// UserHourly is only tracked when positive.
type Limits struct {
	UserHourly      int `json:"user_hourly" yaml:"user_hourly" mapstructure:"user_hourly"`
	GlobalPerMinute int `json:"global_per_minute" yaml:"global_per_minute" mapstructure:"global_per_minute"`
	GlobalPer24h    int `json:"global_per_24h" yaml:"global_per_24h" mapstructure:"global_per_24h"`
}

// TracksUsers reports whether per-user history is kept for these limits.
func (l Limits) TracksUsers() bool { return l.UserHourly > 0 }

// Model binds a translator model name to its limits.
type Model struct {
	Name   string `json:"name" yaml:"name" mapstructure:"name"`
	Limits Limits `json:"limits" yaml:"limits" mapstructure:"limits"`
}

// DefaultModels returns the built-in model list in preference order.
func DefaultModels() []Model {
	return []Model{
		{Name: ModelFlashPreview, Limits: Limits{UserHourly: 1, GlobalPerMinute: 5, GlobalPer24h: 100}},
		{Name: ModelFlash, Limits: Limits{GlobalPerMinute: 10, GlobalPer24h: 1000}},
		{Name: ModelFlashLite, Limits: Limits{GlobalPerMinute: 30, GlobalPer24h: 1250}},
	}
}

// Global is the per-model call history.
type Global map[string][]time.Time

// Users is the per-user, per-model call history.
type Users map[string]map[string][]time.Time

// Persisted histories.
var (
	GlobalResource = store.Define[Global](store.RateLimitGlobal, "ratelimit_global", 1)
	UsersResource  = store.Define[Users](store.RateLimitUsers, "ratelimit_users", 1)
)

// Reason identifies which window denied a call.
type Reason string

// Denial reasons.
const (
	ReasonNone         Reason = ""
	ReasonUserHourly   Reason = "user_hourly"
	ReasonGlobalMinute Reason = "global_minute"
	ReasonGlobal24h    Reason = "global_24h"
	ReasonUnknownModel Reason = "unknown_model"
)

// Decision is the result of an admission check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
	Count   int    `json:"count"`
	Limit   int    `json:"limit"`
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r Reason, count, limit int) Decision {
	return Decision{Reason: r, Count: count, Limit: limit}
}

// within keeps the timestamps younger than window at now.
func within(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	out := ts[:0:0]
	for _, t := range ts {
		if now.Sub(t) < window {
			out = append(out, t)
		}
	}
	return out
}

func count(ts []time.Time, now time.Time, window time.Duration) int {
	n := 0
	for _, t := range ts {
		if now.Sub(t) < window {
			n++
		}
	}
	return n
}

// CheckUser prunes user's history for model to the hourly window and
// reports whether another call is allowed.
func (u *Users) CheckUser(user, model string, l Limits, now time.Time) Decision {
	if !l.TracksUsers() {
		return allow()
	}
	models := (*u)[user]
	if models == nil {
		return allow()
	}
	pruned := within(models[model], now, UserWindow)
	if len(pruned) == 0 {
		delete(models, model)
	} else {
		models[model] = pruned
	}
	if len(models) == 0 {
		delete(*u, user)
	}
	if len(pruned) >= l.UserHourly {
		return deny(ReasonUserHourly, len(pruned), l.UserHourly)
	}
	return allow()
}

// CheckGlobal prunes the model history to the day window and checks the
// minute limit before the day limit.
func (g *Global) CheckGlobal(model string, l Limits, now time.Time) Decision {
	if *g == nil {
		*g = make(Global)
	}
	pruned := within((*g)[model], now, DayWindow)
	if len(pruned) == 0 {
		delete(*g, model)
	} else {
		(*g)[model] = pruned
	}
	if l.GlobalPerMinute > 0 {
		if n := count(pruned, now, MinuteWindow); n >= l.GlobalPerMinute {
			return deny(ReasonGlobalMinute, n, l.GlobalPerMinute)
		}
	}
	if l.GlobalPer24h > 0 && len(pruned) >= l.GlobalPer24h {
		return deny(ReasonGlobal24h, len(pruned), l.GlobalPer24h)
	}
	return allow()
}

// Record appends a call at now to the global history.
func (g *Global) Record(model string, now time.Time) {
	if *g == nil {
		*g = make(Global)
	}
	(*g)[model] = append((*g)[model], now.UTC())
}

// Record appends a call at now to user's history.
func (u *Users) Record(user, model string, now time.Time) {
	if *u == nil {
		*u = make(Users)
	}
	if (*u)[user] == nil {
		(*u)[user] = make(map[string][]time.Time)
	}
	(*u)[user][model] = append((*u)[user][model], now.UTC())
}

// Purge drops timestamps older than maxAge and returns how many were removed.
func (g *Global) Purge(now time.Time, maxAge time.Duration) int {
	removed := 0
	for model, ts := range *g {
		kept := within(ts, now, maxAge)
		removed += len(ts) - len(kept)
		if len(kept) == 0 {
			delete(*g, model)
			continue
		}
		(*g)[model] = kept
	}
	return removed
}

// Purge drops timestamps older than maxAge and returns how many were removed.
func (u *Users) Purge(now time.Time, maxAge time.Duration) int {
	removed := 0
	for user, models := range *u {
		for model, ts := range models {
			kept := within(ts, now, maxAge)
			removed += len(ts) - len(kept)
			if len(kept) == 0 {
				delete(models, model)
				continue
			}
			models[model] = kept
		}
		if len(models) == 0 {
			delete(*u, user)
		}
	}
	return removed
}

// Table resolves limits by model name while keeping preference order.
type Table struct {
	order  []string
	limits map[string]Limits
}

// NewTable builds a table from models. Later duplicates replace earlier
// limits without changing order.
func NewTable(models []Model) *Table {
	t := &Table{limits: make(map[string]Limits, len(models))}
	for _, m := range models {
		if _, dup := t.limits[m.Name]; !dup {
			t.order = append(t.order, m.Name)
		}
		t.limits[m.Name] = m.Limits
	}
	return t
}

// Lookup returns the limits for model.
func (t *Table) Lookup(model string) (Limits, bool) {
	l, ok := t.limits[model]
	return l, ok
}

// Names lists models in preference order.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Models lists every model in preference order.
func (t *Table) Models() []Model {
	out := make([]Model, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, Model{Name: n, Limits: t.limits[n]})
	}
	return out
}

// Calls reports how many calls to model fall inside window at now.
func (g Global) Calls(model string, now time.Time, window time.Duration) int {
	return count(g[model], now, window)
}

// ModelNames lists the models with any recorded history, sorted.
func (g Global) ModelNames() []string {
	out := make([]string, 0, len(g))
	for m := range g {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
