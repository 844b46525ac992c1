package bits

import (
	"context"
	"fmt"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/id"
	"github.com/xraph/bits/store"
	"github.com/xraph/bits/subscription"
	"github.com/xraph/bits/types"
)

// Cancellation reasons reported to plugins.
const (
	CancelRequested    = "requested"
	CancelInsufficient = "insufficient_funds"
)

// charge is one successful billing charge.
type charge struct {
	sub subscription.Subscription
	rec *Receipt
}

// BillingReport summarizes one billing sweep.
type BillingReport struct {
	Charged  []subscription.Subscription
	Canceled []subscription.Subscription
	// Errors holds charges that failed for reasons other than funds. Those
	// subscriptions are kept and retried on the next sweep.
	Errors MultiError
}

// Subscribe charges the first cycle immediately and schedules the next
// payment one cycle from now. Subscribing again to the same payee replaces
// the amount and cycle.
func (e *Engine) Subscribe(ctx context.Context, payer, payee string, amount types.Bits, cycle subscription.Cycle) (*subscription.Subscription, *Receipt, error) {
	payer, err := accountName("payer", payer)
	if err != nil {
		return nil, nil, err
	}
	payee, err = accountName("payee", payee)
	if err != nil {
		return nil, nil, err
	}
	if !cycle.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidCycle, cycle)
	}
	if payer == payee {
		return nil, nil, fmt.Errorf("%w: %s", ErrSelfTransfer, payer)
	}
	if err := validAmount(amount); err != nil {
		return nil, nil, err
	}

	var (
		sub subscription.Subscription
		rec *Receipt
	)
	err = store.Update(ctx, e.store, subscription.Resource, func(set *subscription.Set) error {
		r, err := e.move(ctx, payer, payee, amount, false)
		if err != nil {
			return err
		}
		now := e.now().UTC()
		sub = subscription.Subscription{
			ID:          id.NewSubscriptionID(),
			Payer:       payer,
			Payee:       payee,
			Amount:      amount,
			Cycle:       cycle,
			LastPaid:    now,
			NextPayment: now.Add(cycle.Duration()),
		}
		if prev, ok := set.Get(payer, payee); ok {
			sub.ID = prev.ID
		}
		set.Put(sub)
		rec = r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	e.plugins.EmitSubscriptionCreated(ctx, &sub)
	e.logger.Info("subscription created",
		"subscription_id", sub.ID.String(),
		"payer", payer,
		"payee", payee,
		"amount", amount.String(),
		"cycle", string(cycle),
	)
	return &sub, rec, nil
}

// Cancel removes the subscription from payer to payee.
func (e *Engine) Cancel(ctx context.Context, payer, payee string) (*subscription.Subscription, error) {
	payer, payee = account.Normalize(payer), account.Normalize(payee)

	var sub subscription.Subscription
	err := store.Update(ctx, e.store, subscription.Resource, func(set *subscription.Set) error {
		s, ok := set.Remove(payer, payee)
		if !ok {
			return fmt.Errorf("%w: %s to %s", ErrSubscriptionNotFound, payer, payee)
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitSubscriptionCanceled(ctx, &sub, CancelRequested)
	e.logger.Info("subscription canceled", "payer", payer, "payee", payee, "reason", CancelRequested)
	return &sub, nil
}

// CancelAll removes every subscription paid by payer and returns them
// ordered by payee.
func (e *Engine) CancelAll(ctx context.Context, payer string) ([]subscription.Subscription, error) {
	payer = account.Normalize(payer)

	var removed []subscription.Subscription
	err := store.Update(ctx, e.store, subscription.Resource, func(set *subscription.Set) error {
		removed = set.RemoveAll(payer)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range removed {
		e.plugins.EmitSubscriptionCanceled(ctx, &removed[i], CancelRequested)
	}
	if len(removed) > 0 {
		e.logger.Info("subscriptions canceled", "payer", payer, "count", len(removed))
	}
	return removed, nil
}

// SubscriptionsFrom lists the subscriptions paid by payer.
func (e *Engine) SubscriptionsFrom(ctx context.Context, payer string) ([]subscription.Subscription, error) {
	set, err := store.Read(ctx, e.store, subscription.Resource)
	if err != nil {
		return nil, err
	}
	return set.From(account.Normalize(payer)), nil
}

// SubscriptionsTo lists the subscriptions paying payee.
func (e *Engine) SubscriptionsTo(ctx context.Context, payee string) ([]subscription.Subscription, error) {
	set, err := store.Read(ctx, e.store, subscription.Resource)
	if err != nil {
		return nil, err
	}
	return set.To(account.Normalize(payee)), nil
}

// ProcessSubscriptions charges every due subscription in one update of the
// subscription set. A charge that fails for insufficient funds removes the
// subscription. Other failures leave it in place for the next sweep.
func (e *Engine) ProcessSubscriptions(ctx context.Context) (*BillingReport, error) {
	report := &BillingReport{}
	var charges []charge

	err := store.Update(ctx, e.store, subscription.Resource, func(set *subscription.Set) error {
		now := e.now()
		for _, sub := range set.All() {
			if !sub.Due(now) {
				continue
			}
			rec, err := e.move(ctx, sub.Payer, sub.Payee, sub.Amount, false)
			if _, funds := IsInsufficientFunds(err); funds {
				set.Remove(sub.Payer, sub.Payee)
				report.Canceled = append(report.Canceled, sub)
				continue
			}
			if err != nil {
				report.Errors.Add(fmt.Errorf("charge %s: %w", sub.ID, err))
				continue
			}
			sub.Advance(now)
			set.Put(sub)
			charges = append(charges, charge{sub: sub, rec: rec})
			report.Charged = append(report.Charged, sub)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	for _, c := range charges {
		sub := c.sub
		e.notify(ctx, sub.Payee, fmt.Sprintf("%s paid you %s bits for your %s subscription!", sub.Payer, sub.Amount, sub.Cycle))
		e.notify(ctx, sub.Payer, fmt.Sprintf("You paid %s bits to %s for your %s subscription. Your new balance: %s",
			sub.Amount, sub.Payee, sub.Cycle, c.rec.FromBalance))
		e.plugins.EmitSubscriptionCharged(ctx, &sub, &c.rec.Transaction)
	}
	for i := range report.Canceled {
		sub := report.Canceled[i]
		e.notify(ctx, sub.Payer, fmt.Sprintf("Your subscription payment of %s bits to %s failed due to insufficient balance. Subscription cancelled.",
			sub.Amount, sub.Payee))
		e.notify(ctx, sub.Payee, fmt.Sprintf("%s's subscription payment of %s bits failed due to insufficient balance. Subscription cancelled.",
			sub.Payer, sub.Amount))
		e.plugins.EmitSubscriptionCanceled(ctx, &sub, CancelInsufficient)
	}

	e.logger.Debug("billing sweep completed",
		"charged", len(report.Charged),
		"canceled", len(report.Canceled),
		"failed", len(report.Errors.Errors),
	)
	return report, report.Errors.Err()
}
