package bits

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/ratelimit"
	"github.com/xraph/bits/store"
)

// CheckAndAdmit prunes the call history of model and reports whether user
// may make another call. The user window is checked first, then the global
// minute window, then the global day window. Pruned histories persist
// whatever the decision.
func (e *Engine) CheckAndAdmit(ctx context.Context, user, model string) (ratelimit.Decision, error) {
	user = account.Normalize(user)
	limits, ok := e.limits.Lookup(model)
	if !ok {
		return ratelimit.Decision{Reason: ratelimit.ReasonUnknownModel}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}

	var d ratelimit.Decision
	err := store.Update(ctx, e.store, ratelimit.GlobalResource, func(g *ratelimit.Global) error {
		now := e.now()
		if limits.TracksUsers() {
			if err := store.Update(ctx, e.store, ratelimit.UsersResource, func(u *ratelimit.Users) error {
				d = u.CheckUser(user, model, limits, now)
				return nil
			}); err != nil {
				return err
			}
		}
		if limits.TracksUsers() && !d.Allowed {
			// Still prune the global history.
			g.CheckGlobal(model, limits, now)
			return nil
		}
		d = g.CheckGlobal(model, limits, now)
		return nil
	})
	if err != nil {
		return ratelimit.Decision{}, err
	}

	if !d.Allowed {
		e.plugins.EmitRateLimited(ctx, user, model, d)
		e.logger.Debug("translator call denied",
			"user", user,
			"model", model,
			"reason", string(d.Reason),
			"count", d.Count,
			"limit", d.Limit,
		)
	}
	return d, nil
}

// RecordCall appends a call to the global history of model, and to user's
// history when model has a per-user limit.
func (e *Engine) RecordCall(ctx context.Context, user, model string) error {
	user = account.Normalize(user)
	limits, ok := e.limits.Lookup(model)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}

	return store.Update(ctx, e.store, ratelimit.GlobalResource, func(g *ratelimit.Global) error {
		now := e.now()
		g.Record(model, now)
		if !limits.TracksUsers() {
			return nil
		}
		return store.Update(ctx, e.store, ratelimit.UsersResource, func(u *ratelimit.Users) error {
			u.Record(user, model, now)
			return nil
		})
	})
}

// PurgeUsage drops call history older than olderThan and returns how many
// timestamps were removed.
func (e *Engine) PurgeUsage(ctx context.Context, olderThan time.Duration) (int, error) {
	removed := 0
	err := store.Update(ctx, e.store, ratelimit.GlobalResource, func(g *ratelimit.Global) error {
		now := e.now()
		removed = g.Purge(now, olderThan)
		return store.Update(ctx, e.store, ratelimit.UsersResource, func(u *ratelimit.Users) error {
			removed += u.Purge(now, olderThan)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		e.logger.Info("rate limit history purged", "removed", removed, "older_than", olderThan)
	}
	return removed, nil
}
