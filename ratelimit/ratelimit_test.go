package ratelimit

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func TestUserHourlyWindow(t *testing.T) {
	l := Limits{UserHourly: 1, GlobalPerMinute: 5, GlobalPer24h: 100}
	var g Global
	var u Users

	if d := u.CheckUser("alice", ModelFlashPreview, l, t0); !d.Allowed {
		t.Fatalf("first call denied: %+v", d)
	}
	g.Record(ModelFlashPreview, t0)
	u.Record("alice", ModelFlashPreview, t0)

	d := u.CheckUser("alice", ModelFlashPreview, l, t0.Add(30*time.Minute))
	if d.Allowed || d.Reason != ReasonUserHourly {
		t.Fatalf("second call in the hour: %+v", d)
	}

	// Other users are unaffected.
	if d := u.CheckUser("bob", ModelFlashPreview, l, t0.Add(time.Minute)); !d.Allowed {
		t.Errorf("bob denied: %+v", d)
	}

	if d := u.CheckUser("alice", ModelFlashPreview, l, t0.Add(time.Hour)); !d.Allowed {
		t.Errorf("call after the window denied: %+v", d)
	}
	if _, ok := u["alice"]; ok {
		t.Error("expired user history should be pruned")
	}
}

func TestGlobalWindows(t *testing.T) {
	tests := []struct {
		name   string
		limits Limits
		calls  []time.Duration
		at     time.Duration
		want   Reason
	}{
		{
			name:   "minute limit reached",
			limits: Limits{GlobalPerMinute: 3, GlobalPer24h: 100},
			calls:  []time.Duration{0, time.Second, 2 * time.Second},
			at:     10 * time.Second,
			want:   ReasonGlobalMinute,
		},
		{
			name:   "minute window aged out",
			limits: Limits{GlobalPerMinute: 3, GlobalPer24h: 100},
			calls:  []time.Duration{0, time.Second, 2 * time.Second},
			at:     61 * time.Second,
			want:   ReasonNone,
		},
		{
			name:   "day limit reached",
			limits: Limits{GlobalPerMinute: 10, GlobalPer24h: 2},
			calls:  []time.Duration{0, time.Hour},
			at:     2 * time.Hour,
			want:   ReasonGlobal24h,
		},
		{
			name:   "day window aged out",
			limits: Limits{GlobalPerMinute: 10, GlobalPer24h: 2},
			calls:  []time.Duration{0, time.Hour},
			at:     24 * time.Hour,
			want:   ReasonNone,
		},
		{
			name:   "unlimited",
			limits: Limits{},
			calls:  []time.Duration{0, 0, 0, 0},
			at:     time.Second,
			want:   ReasonNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g Global
			for _, c := range tt.calls {
				g.Record(ModelFlash, t0.Add(c))
			}
			d := g.CheckGlobal(ModelFlash, tt.limits, t0.Add(tt.at))
			if d.Reason != tt.want || d.Allowed != (tt.want == ReasonNone) {
				t.Errorf("decision = %+v, want reason %q", d, tt.want)
			}
		})
	}
}

func TestCheckGlobalPrunesToDay(t *testing.T) {
	var g Global
	g.Record(ModelFlashLite, t0)
	g.Record(ModelFlashLite, t0.Add(23*time.Hour))

	g.CheckGlobal(ModelFlashLite, Limits{GlobalPerMinute: 30, GlobalPer24h: 1250}, t0.Add(25*time.Hour))
	if n := len(g[ModelFlashLite]); n != 1 {
		t.Errorf("pruned history has %d entries, want 1", n)
	}
}

func TestPurge(t *testing.T) {
	var g Global
	var u Users
	old := t0.Add(-31 * 24 * time.Hour)
	g.Record(ModelFlash, old)
	g.Record(ModelFlash, t0)
	g.Record(ModelFlashLite, old)
	u.Record("alice", ModelFlashPreview, old)

	if n := g.Purge(t0, Retention); n != 2 {
		t.Errorf("global removed %d, want 2", n)
	}
	if _, ok := g[ModelFlashLite]; ok {
		t.Error("empty model history should be dropped")
	}
	if n := u.Purge(t0, Retention); n != 1 || len(u) != 0 {
		t.Errorf("users removed %d, left %v", n, u)
	}
}

func TestTable(t *testing.T) {
	tbl := NewTable(DefaultModels())
	names := tbl.Names()
	if len(names) != 3 || names[0] != ModelFlashPreview || names[2] != ModelFlashLite {
		t.Fatalf("Names = %v", names)
	}
	l, ok := tbl.Lookup(ModelFlashPreview)
	if !ok || !l.TracksUsers() {
		t.Errorf("premium model should track users: %+v", l)
	}
	if l, _ := tbl.Lookup(ModelFlash); l.TracksUsers() {
		t.Error("standard model should not track users")
	}
	if _, ok := tbl.Lookup("unknown"); ok {
		t.Error("unexpected lookup hit")
	}
}
