package account

import (
	"testing"
	"time"

	"github.com/xraph/bits/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alice", "alice"},
		{"@Bob", "bob"},
		{"Carol Smith", "carolsmith"},
		{"dave_99-x", "dave_99-x"},
		{"e!v#e.", "eve"},
		{"@@  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBalancesOpenAndTotal(t *testing.T) {
	var b Balances
	if got := b.Ensure("alice"); !got.Equal(InitialBalance) {
		t.Fatalf("Ensure: got %v", got)
	}
	b.Open("alicecompany", types.Zero)
	b.Credit("alicecompany", types.New(25))
	b.Debit("alice", types.New(25))

	if v, _ := b.Get("alice"); !v.Equal(types.New(75)) {
		t.Errorf("alice: got %v", v)
	}
	if v, _ := b.Get("alicecompany"); !v.Equal(types.New(25)) {
		t.Errorf("alicecompany: got %v", v)
	}
	if got := b.Total(); !got.Equal(types.New(100)) {
		t.Errorf("Total: got %v", got)
	}
}

func TestReplay(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	founding := NewTransaction(t0.Add(time.Second), "alice", "alicecompany", types.New(50))
	founding.OpensPool = true
	adopted := NewTransaction(t0.Add(6*time.Second), "bob", "bobcompany", types.New(20))
	log := Log{
		NewTransaction(t0.Add(2*time.Second), "bob", "carol", types.New(5)),
		NewTransaction(t0, "alice", "bob", types.New(30)),
		founding,
		NewTransaction(t0.Add(3*time.Second), Mint, Treasury, types.New(10)),
		NewTransaction(t0.Add(4*time.Second), Treasury, Burn, types.New(4)),
		NewTransaction(t0.Add(5*time.Second), "carol", "bobcompany", types.New(1)),
		adopted,
	}

	got := Replay(log, []string{"dave", "alicecompany"})

	want := map[string]types.Bits{
		"alice":        types.New(20),
		"bob":          types.New(105),
		"carol":        types.New(104),
		"alicecompany": types.New(50),
		"bobcompany":   types.New(121),
		"dave":         types.New(100),
		Treasury:       types.New(106),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d accounts, want %d: %v", len(got), len(want), got)
	}
	for name, v := range want {
		if !got[name].Equal(v) {
			t.Errorf("%s: got %v, want %v", name, got[name], v)
		}
	}
	if _, ok := got[Mint]; ok {
		t.Error("sentinel mint must not hold a balance")
	}
}

func TestOrderedKeepsAppendOrderOnTies(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	log := Log{
		NewTransaction(t0, "a", "b", types.New(1)),
		NewTransaction(t0, "c", "d", types.New(2)),
		NewTransaction(t0.Add(-time.Second), "e", "f", types.New(3)),
	}
	got := log.Ordered()
	if got[0].From != "e" || got[1].From != "a" || got[2].From != "c" {
		t.Errorf("unexpected order: %s %s %s", got[0].From, got[1].From, got[2].From)
	}
}

func TestDiff(t *testing.T) {
	actual := Balances{"alice": types.New(70), "bob": types.New(140), "ghost": types.New(1)}
	expected := Balances{"alice": types.New(70), "bob": types.New(130), "carol": types.New(100)}

	drift := Diff(actual, expected)
	if len(drift) != 3 {
		t.Fatalf("got %d drifts: %+v", len(drift), drift)
	}
	if drift[0].Account != "bob" || !drift[0].Expected.Equal(types.New(130)) {
		t.Errorf("unexpected first drift %+v", drift[0])
	}
	if drift[1].Account != "carol" || !drift[1].Actual.IsZero() {
		t.Errorf("unexpected second drift %+v", drift[1])
	}
	if drift[2].Account != "ghost" || !drift[2].Expected.IsZero() {
		t.Errorf("unexpected third drift %+v", drift[2])
	}
}

func TestInvolving(t *testing.T) {
	t0 := time.Now()
	log := Log{
		NewTransaction(t0, "alice", "bob", types.New(1)),
		NewTransaction(t0, "carol", "dave", types.New(2)),
		NewTransaction(t0, "bob", "alice", types.New(3)),
	}
	got := log.Involving("alice", 0)
	if len(got) != 2 || !got[0].Amount.Equal(types.New(3)) {
		t.Errorf("unexpected %+v", got)
	}
	if got := log.Involving("alice", 1); len(got) != 1 {
		t.Errorf("limit ignored: %+v", got)
	}
}
