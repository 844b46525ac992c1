package account

import (
	"sort"
	"time"

	"github.com/xraph/bits/id"
	"github.com/xraph/bits/store"
	"github.com/xraph/bits/types"
)

// Transaction is an immutable record of one movement of bits.
type Transaction struct {
	ID        id.TransactionID `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	From      string           `json:"from"`
	To        string           `json:"to"`
	Amount    types.Bits       `json:"amount"`
	// OpensPool marks the movement that opened To at zero instead of
	// InitialBalance.
	OpensPool bool `json:"opens_pool,omitempty"`
}

// NewTransaction builds a transaction stamped at t.
func NewTransaction(t time.Time, from, to string, amount types.Bits) Transaction {
	return Transaction{
		ID:        id.NewTransactionID(),
		Timestamp: t.UTC(),
		From:      from,
		To:        to,
		Amount:    amount,
	}
}

// Log is the append-only transaction history.
type Log []Transaction

// LogResource is the persisted transaction log.
var LogResource = store.Define[Log](store.Transactions, "transactions", 1)

// Append adds tx to the end of the log.
func (l *Log) Append(tx Transaction) {
	*l = append(*l, tx)
}

// Ordered returns the log sorted by timestamp. Entries with equal
// timestamps keep their append order.
func (l Log) Ordered() Log {
	out := make(Log, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Involving returns the transactions where name is either side, newest first.
func (l Log) Involving(name string, limit int) Log {
	var out Log
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].From == name || l[i].To == name {
			out = append(out, l[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// Replay rebuilds the balances the log implies.
//
// An account starts from InitialBalance the first time it appears, unless
// that appearance is the destination of a movement marked OpensPool, in
// which case it starts from zero. Accounts in known that never appear in
// the log keep InitialBalance. Sentinel counterparties are skipped.
func Replay(l Log, known []string) Balances {
	expected := make(Balances)
	open := func(name string, opening types.Bits) {
		if !IsSentinel(name) {
			expected.Open(name, opening)
		}
	}

	for _, tx := range l.Ordered() {
		open(tx.From, InitialBalance)
		if tx.OpensPool {
			open(tx.To, types.Zero)
		} else {
			open(tx.To, InitialBalance)
		}
		if !IsSentinel(tx.From) {
			expected[tx.From] = expected[tx.From].Sub(tx.Amount)
		}
		if !IsSentinel(tx.To) {
			expected[tx.To] = expected[tx.To].Add(tx.Amount)
		}
	}
	for _, name := range known {
		open(name, InitialBalance)
	}
	return expected
}

// Drift is one account whose stored balance disagrees with the replay.
type Drift struct {
	Account  string     `json:"account"`
	Actual   types.Bits `json:"actual"`
	Expected types.Bits `json:"expected"`
}

// Diff lists accounts whose actual balance differs from expected, sorted by
// account name. Accounts missing from actual count as zero.
func Diff(actual, expected Balances) []Drift {
	var out []Drift
	seen := make(map[string]bool, len(expected))
	for name, want := range expected {
		seen[name] = true
		got := actual[name]
		if !got.Equal(want) {
			out = append(out, Drift{Account: name, Actual: got, Expected: want})
		}
	}
	for name, got := range actual {
		if seen[name] || IsSentinel(name) {
			continue
		}
		out = append(out, Drift{Account: name, Actual: got, Expected: types.Zero})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}
