package subscription

import (
	"testing"
	"time"

	"github.com/xraph/bits/types"
)

func TestCycle(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"daily", 86400 * time.Second, true},
		{"Weekly", 7 * 86400 * time.Second, true},
		{" monthly ", 30 * 86400 * time.Second, true},
		{"yearly", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseCycle(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("ParseCycle(%q) err = %v", tt.in, err)
			}
			if c.Duration() != tt.want {
				t.Errorf("Duration = %s, want %s", c.Duration(), tt.want)
			}
		})
	}
}

func TestAdvance(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := Subscription{Cycle: CycleWeekly, NextPayment: t0.Add(7 * day)}

	charge := t0.Add(7*day + 90*time.Second)
	if !sub.Due(charge) {
		t.Fatal("expected due")
	}
	sub.Advance(charge)

	if !sub.NextPayment.Equal(t0.Add(14 * day)) {
		t.Errorf("NextPayment = %s, want %s", sub.NextPayment, t0.Add(14*day))
	}
	if !sub.LastPaid.Equal(charge) {
		t.Errorf("LastPaid = %s", sub.LastPaid)
	}
	if sub.Due(charge) {
		t.Error("expected not due right after advance")
	}
}

func TestSet(t *testing.T) {
	var s Set
	s.Put(Subscription{Payer: "alice", Payee: "bob", Amount: types.New(10), Cycle: CycleDaily})
	s.Put(Subscription{Payer: "alice", Payee: "carol", Amount: types.New(5), Cycle: CycleWeekly})
	s.Put(Subscription{Payer: "dave", Payee: "bob", Amount: types.New(1), Cycle: CycleMonthly})

	// Re-subscribing replaces in place.
	s.Put(Subscription{Payer: "alice", Payee: "bob", Amount: types.New(20), Cycle: CycleDaily})
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	if sub, _ := s.Get("alice", "bob"); !sub.Amount.Equal(types.New(20)) {
		t.Errorf("replace failed: %+v", sub)
	}

	if to := s.To("bob"); len(to) != 2 || to[0].Payer != "alice" || to[1].Payer != "dave" {
		t.Errorf("To(bob) = %+v", to)
	}

	all := s.All()
	if len(all) != 3 || all[0].Payee != "bob" || all[1].Payee != "carol" || all[2].Payer != "dave" {
		t.Errorf("All order = %+v", all)
	}

	if _, ok := s.Remove("alice", "zed"); ok {
		t.Error("removed missing subscription")
	}
	if _, ok := s.Remove("dave", "bob"); !ok {
		t.Error("expected removal")
	}
	if _, ok := s["dave"]; ok {
		t.Error("empty payer entry should be dropped")
	}

	removed := s.RemoveAll("alice")
	if len(removed) != 2 || s.Len() != 0 {
		t.Errorf("RemoveAll: removed %d, left %d", len(removed), s.Len())
	}
}
