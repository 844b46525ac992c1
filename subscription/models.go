// Package subscription models recurring payer to payee charges.
package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/xraph/bits/id"
	"github.com/xraph/bits/types"
)

// Cycle is the recurrence interval of a subscription.
type Cycle string

const (
	CycleDaily   Cycle = "daily"
	CycleWeekly  Cycle = "weekly"
	CycleMonthly Cycle = "monthly"
)

const day = 24 * time.Hour

// Duration returns the fixed length of the cycle. A month is 30 days.
func (c Cycle) Duration() time.Duration {
	switch c {
	case CycleDaily:
		return day
	case CycleWeekly:
		return 7 * day
	case CycleMonthly:
		return 30 * day
	default:
		return 0
	}
}

// Valid reports whether c is a known cycle.
func (c Cycle) Valid() bool { return c.Duration() > 0 }

// ParseCycle parses "daily", "weekly" or "monthly", case-insensitively.
func ParseCycle(s string) (Cycle, error) {
	c := Cycle(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("subscription: unknown cycle %q", s)
	}
	return c, nil
}

// Subscription charges Payer Amount every Cycle in favour of Payee.
type Subscription struct {
	ID          id.SubscriptionID `json:"id"`
	Payer       string            `json:"payer"`
	Payee       string            `json:"payee"`
	Amount      types.Bits        `json:"amount"`
	Cycle       Cycle             `json:"cycle"`
	LastPaid    time.Time         `json:"last_paid"`
	NextPayment time.Time         `json:"next_payment"`
}

// Due reports whether the subscription should be charged at now.
func (s Subscription) Due(now time.Time) bool {
	return !s.NextPayment.After(now)
}

// Advance records a successful charge at now and schedules the next one
// one cycle after the previous due date.
func (s *Subscription) Advance(now time.Time) {
	s.LastPaid = now.UTC()
	s.NextPayment = s.NextPayment.Add(s.Cycle.Duration())
}
