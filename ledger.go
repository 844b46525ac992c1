package bits

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/company"
	"github.com/xraph/bits/governance"
	"github.com/xraph/bits/store"
	"github.com/xraph/bits/types"
)

// LeaderboardSize is the number of standings Leaderboard returns by default.
const LeaderboardSize = 100

// FundsError reports an underfunded debit. It matches ErrInsufficientFunds.
type FundsError struct {
	Account string
	Balance types.Bits
	Amount  types.Bits
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("bits: insufficient funds: %s has %s bits, needs %s", e.Account, e.Balance, e.Amount)
}

// Unwrap returns ErrInsufficientFunds.
func (e *FundsError) Unwrap() error { return ErrInsufficientFunds }

// Receipt is the result of a committed movement.
type Receipt struct {
	Transaction account.Transaction
	// FromBalance and ToBalance are the balances after the movement. They
	// are zero for sentinel counterparties.
	FromBalance types.Bits
	ToBalance   types.Bits
}

// Standing is one leaderboard row.
type Standing struct {
	Account string     `json:"account"`
	Balance types.Bits `json:"balance"`
	Company bool       `json:"company"`
}

func (s Standing) String() string {
	label := s.Account
	if s.Company {
		label += " (CO)"
	}
	return label + ": " + s.Balance.String()
}

// ──────────────────────────────────────────────────
// Validation
// ──────────────────────────────────────────────────

// accountName normalizes raw and rejects empty and sentinel names.
func accountName(field, raw string) (string, error) {
	name := account.Normalize(raw)
	if name == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidAccount, ValidationError{Field: field, Message: "empty after normalization"})
	}
	if account.IsSentinel(name) {
		return "", fmt.Errorf("%w: %w", ErrInvalidAccount, ValidationError{Field: field, Message: name + " is reserved"})
	}
	return name, nil
}

func validAmount(amount types.Bits) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Movements
// ──────────────────────────────────────────────────

// move debits from and credits to inside one balances span, appending the
// transaction before the balances are committed. A pool destination that
// does not exist yet opens at zero and the transaction records it; one that
// already exists keeps its balance. Sentinels never hold a balance.
func (e *Engine) move(ctx context.Context, from, to string, amount types.Bits, pool bool) (*Receipt, error) {
	var rec *Receipt
	err := store.Update(ctx, e.store, account.BalancesResource, func(b *account.Balances) error {
		if !account.IsSentinel(from) {
			if bal := b.Ensure(from); bal.LessThan(amount) {
				return &FundsError{Account: from, Balance: bal, Amount: amount}
			}
		}
		tx := account.NewTransaction(e.now(), from, to, amount)
		if !account.IsSentinel(to) {
			if _, exists := b.Get(to); pool && !exists {
				b.Open(to, types.Zero)
				tx.OpensPool = true
			} else {
				b.Open(to, account.InitialBalance)
			}
		}

		if err := store.Update(ctx, e.store, account.LogResource, func(l *account.Log) error {
			l.Append(tx)
			return nil
		}); err != nil {
			return err
		}

		rec = &Receipt{Transaction: tx}
		if !account.IsSentinel(from) {
			b.Debit(from, amount)
			rec.FromBalance, _ = b.Get(from)
		}
		if !account.IsSentinel(to) {
			b.Credit(to, amount)
			rec.ToBalance, _ = b.Get(to)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitTransfer(ctx, &rec.Transaction)
	e.logger.Debug("bits moved",
		"from", from,
		"to", to,
		"amount", amount.String(),
		"transaction_id", rec.Transaction.ID.String(),
	)
	return rec, nil
}

// asHolder runs fn while holding the governance lock, after checking that
// actor holds position. The governance record is not rewritten.
func (e *Engine) asHolder(ctx context.Context, actor, position string, fn func() error) error {
	return e.store.UpdateRaw(ctx, store.Governance, func(raw []byte) ([]byte, error) {
		rec, err := governance.Resource.Decode(raw)
		if err != nil {
			return nil, err
		}
		if holder := rec.Holder(position); holder == "" || holder != actor {
			return nil, fmt.Errorf("%w: %s is not %s", ErrNotHolder, actor, position)
		}
		return nil, fn()
	})
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// GetBalance returns the balance of name, opening the account at
// account.InitialBalance when it does not exist.
func (e *Engine) GetBalance(ctx context.Context, name string) (types.Bits, error) {
	name, err := accountName("account", name)
	if err != nil {
		return types.Zero, err
	}

	balances, err := store.Read(ctx, e.store, account.BalancesResource)
	if err != nil {
		return types.Zero, err
	}
	if bal, ok := balances.Get(name); ok {
		return bal, nil
	}

	var bal types.Bits
	err = store.Update(ctx, e.store, account.BalancesResource, func(b *account.Balances) error {
		bal = b.Ensure(name)
		return nil
	})
	return bal, err
}

// Search returns the balance of name without opening the account.
func (e *Engine) Search(ctx context.Context, name string) (types.Bits, bool, error) {
	name = account.Normalize(name)
	balances, err := store.Read(ctx, e.store, account.BalancesResource)
	if err != nil {
		return types.Zero, false, err
	}
	bal, ok := balances.Get(name)
	return bal, ok, nil
}

// Leaderboard returns the top n accounts by balance, companies labelled.
// A non-positive n uses LeaderboardSize.
func (e *Engine) Leaderboard(ctx context.Context, n int) ([]Standing, error) {
	if n <= 0 {
		n = LeaderboardSize
	}
	balances, err := store.Read(ctx, e.store, account.BalancesResource)
	if err != nil {
		return nil, err
	}
	registry, err := store.Read(ctx, e.store, company.Resource)
	if err != nil {
		return nil, err
	}

	out := make([]Standing, 0, len(balances))
	for name, bal := range balances {
		if account.IsSentinel(name) {
			continue
		}
		out = append(out, Standing{Account: name, Balance: bal, Company: registry.Has(name)})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Balance.Cmp(out[j].Balance); c != 0 {
			return c > 0
		}
		return out[i].Account < out[j].Account
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// TotalSupply sums every stored balance.
func (e *Engine) TotalSupply(ctx context.Context) (types.Bits, error) {
	balances, err := store.Read(ctx, e.store, account.BalancesResource)
	if err != nil {
		return types.Zero, err
	}
	return balances.Total(), nil
}

// History returns the transactions involving name, newest first. A
// non-positive limit returns all of them.
func (e *Engine) History(ctx context.Context, name string, limit int) (account.Log, error) {
	log, err := store.Read(ctx, e.store, account.LogResource)
	if err != nil {
		return nil, err
	}
	return log.Involving(account.Normalize(name), limit), nil
}

// ──────────────────────────────────────────────────
// Transfers
// ──────────────────────────────────────────────────

// Transfer moves amount from one regular account to another.
func (e *Engine) Transfer(ctx context.Context, from, to string, amount types.Bits) (*Receipt, error) {
	from, err := accountName("from", from)
	if err != nil {
		return nil, err
	}
	to, err = accountName("to", to)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, fmt.Errorf("%w: %s", ErrSelfTransfer, from)
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	return e.move(ctx, from, to, amount, false)
}

// Give is the request-path transfer. It returns the sender's new balance.
func (e *Engine) Give(ctx context.Context, from, to string, amount types.Bits) (types.Bits, error) {
	rec, err := e.Transfer(ctx, from, to, amount)
	if err != nil {
		return types.Zero, err
	}
	sender, receiver := rec.Transaction.From, rec.Transaction.To
	e.notify(ctx, receiver, fmt.Sprintf("%s gave you %s bits!", sender, amount))
	e.notify(ctx, sender, fmt.Sprintf("You gave %s bits to %s!", amount, receiver))
	return rec.FromBalance, nil
}

// ──────────────────────────────────────────────────
// Treasury
// ──────────────────────────────────────────────────

// Mint prints amount into the treasury. Only the president may mint.
func (e *Engine) Mint(ctx context.Context, actor string, amount types.Bits) (*Receipt, error) {
	return e.treasuryOp(ctx, actor, amount, account.Mint, account.Treasury)
}

// Burn destroys amount from the treasury. Only the president may burn.
func (e *Engine) Burn(ctx context.Context, actor string, amount types.Bits) (*Receipt, error) {
	return e.treasuryOp(ctx, actor, amount, account.Treasury, account.Burn)
}

// Spend moves amount from the treasury to target. Only the president may
// spend.
func (e *Engine) Spend(ctx context.Context, actor, target string, amount types.Bits) (*Receipt, error) {
	target, err := accountName("target", target)
	if err != nil {
		return nil, err
	}
	if target == account.Treasury {
		return nil, fmt.Errorf("%w: %s", ErrSelfTransfer, target)
	}
	return e.treasuryOp(ctx, actor, amount, account.Treasury, target)
}

func (e *Engine) treasuryOp(ctx context.Context, actor string, amount types.Bits, from, to string) (*Receipt, error) {
	actor, err := accountName("actor", actor)
	if err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	var rec *Receipt
	err = e.asHolder(ctx, actor, governance.President, func() error {
		r, err := e.move(ctx, from, to, amount, false)
		rec = r
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("treasury operation",
		"actor", actor,
		"from", from,
		"to", to,
		"amount", amount.String(),
	)
	return rec, nil
}

// IsInsufficientFunds returns the FundsError carried by err, if any.
func IsInsufficientFunds(err error) (*FundsError, bool) {
	var fe *FundsError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
