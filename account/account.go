// Package account defines ledger accounts, the balances table and the
// append-only transaction log.
package account

import (
	"strings"

	"github.com/xraph/bits/store"
	"github.com/xraph/bits/types"
)

// Well-known account names.
const (
	// Treasury is the account controlled by the current president.
	Treasury = "officialtreasury"
	// Mint is the counterparty of newly printed bits. It has no balance.
	Mint = "mint"
	// Burn is the counterparty of destroyed bits. It has no balance.
	Burn = "burn"
)

// InitialBalance is granted to every regular account on first read.
var InitialBalance = types.New(100)

// Normalize maps a display name to an account name: lowercase, spaces and
// "@" removed, and anything outside [a-z0-9_-] dropped.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsSentinel reports whether name is an external counterparty that never
// holds a balance.
func IsSentinel(name string) bool {
	return name == Mint || name == Burn
}

// Balances maps account names to their balance.
type Balances map[string]types.Bits

// BalancesResource is the persisted balances table.
var BalancesResource = store.Define[Balances](store.Balances, "balances", 1)

// Get returns the balance of name and whether the account exists.
func (b Balances) Get(name string) (types.Bits, bool) {
	v, ok := b[name]
	return v, ok
}

// Open creates name with the given opening balance if it does not exist
// and returns its balance.
func (b *Balances) Open(name string, opening types.Bits) types.Bits {
	if *b == nil {
		*b = make(Balances)
	}
	if v, ok := (*b)[name]; ok {
		return v
	}
	(*b)[name] = opening
	return opening
}

// Ensure is Open with InitialBalance.
func (b *Balances) Ensure(name string) types.Bits {
	return b.Open(name, InitialBalance)
}

// Credit adds amount to name, opening it at InitialBalance if needed.
func (b *Balances) Credit(name string, amount types.Bits) {
	(*b)[name] = b.Ensure(name).Add(amount)
}

// Debit subtracts amount from name, opening it at InitialBalance if needed.
func (b *Balances) Debit(name string, amount types.Bits) {
	(*b)[name] = b.Ensure(name).Sub(amount)
}

// Total sums every non-sentinel balance.
func (b Balances) Total() types.Bits {
	total := types.Zero
	for name, v := range b {
		if IsSentinel(name) {
			continue
		}
		total = total.Add(v)
	}
	return total
}

// Clone returns a copy of the table.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
