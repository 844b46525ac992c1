package bits

import (
	"context"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/notification"
	"github.com/xraph/bits/store"
	"github.com/xraph/bits/types"
)

// Notify appends message to user's mailbox.
func (e *Engine) Notify(ctx context.Context, user, message string) error {
	user, err := accountName("user", user)
	if err != nil {
		return err
	}
	return store.Update(ctx, e.store, notification.MailboxFor(user), func(m *notification.Mailbox) error {
		m.Add(e.now(), message)
		return nil
	})
}

// notify is Notify for side effects of an already committed operation.
// Failures are logged, never returned.
func (e *Engine) notify(ctx context.Context, user, message string) {
	if err := e.Notify(ctx, user, message); err != nil {
		e.logger.Warn("notification dropped", "user", user, "error", err)
	}
}

// Notifications renders user's mailbox, oldest first, without draining it.
func (e *Engine) Notifications(ctx context.Context, user string) ([]string, error) {
	m, err := store.Read(ctx, e.store, notification.MailboxFor(account.Normalize(user)))
	if err != nil {
		return nil, err
	}
	return m.Lines(e.loc), nil
}

// Drain renders and clears user's mailbox.
func (e *Engine) Drain(ctx context.Context, user string) ([]string, error) {
	user, err := accountName("user", user)
	if err != nil {
		return nil, err
	}
	var lines []string
	err = store.Update(ctx, e.store, notification.MailboxFor(user), func(m *notification.Mailbox) error {
		lines = m.Lines(e.loc)
		*m = notification.Mailbox{}
		return nil
	})
	return lines, err
}

// Balance is the request-path balance check. It opens the account when
// needed and leaves a welcome message in an empty mailbox.
func (e *Engine) Balance(ctx context.Context, user string) (types.Bits, error) {
	bal, err := e.GetBalance(ctx, user)
	if err != nil {
		return types.Zero, err
	}
	user = account.Normalize(user)
	err = store.Update(ctx, e.store, notification.MailboxFor(user), func(m *notification.Mailbox) error {
		if len(*m) == 0 {
			m.Add(e.now(), notification.Welcome)
		}
		return nil
	})
	return bal, err
}

// Preferences returns user's preferences, persisting the defaults for any
// missing key.
func (e *Engine) Preferences(ctx context.Context, user string) (notification.Preferences, error) {
	user, err := accountName("user", user)
	if err != nil {
		return nil, err
	}
	res := notification.PreferencesFor(user)
	prefs, err := store.Read(ctx, e.store, res)
	if err != nil {
		return nil, err
	}
	if !prefs.WithDefaults() {
		return prefs, nil
	}
	err = e.store.UpdateRaw(ctx, res.Name, func(raw []byte) ([]byte, error) {
		cur, err := res.Decode(raw)
		if err != nil {
			return nil, err
		}
		if !cur.WithDefaults() {
			prefs = cur
			return nil, nil
		}
		prefs = cur
		return res.Encode(cur)
	})
	return prefs, err
}

// SetPreferences replaces user's theme and mute settings.
func (e *Engine) SetPreferences(ctx context.Context, user, theme, mute string) error {
	user, err := accountName("user", user)
	if err != nil {
		return err
	}
	return store.Update(ctx, e.store, notification.PreferencesFor(user), func(p *notification.Preferences) error {
		p.WithDefaults()
		(*p)[notification.KeyTheme] = theme
		(*p)[notification.KeyMute] = mute
		return nil
	})
}

// MarkProcessed records a transport request id and reports whether it was
// new.
func (e *Engine) MarkProcessed(ctx context.Context, requestID string) (bool, error) {
	fresh := false
	err := store.Update(ctx, e.store, notification.ProcessedResource, func(p *notification.Processed) error {
		fresh = p.Mark(requestID, e.now())
		return nil
	})
	return fresh, err
}

// IsProcessed reports whether requestID was already handled.
func (e *Engine) IsProcessed(ctx context.Context, requestID string) (bool, error) {
	p, err := store.Read(ctx, e.store, notification.ProcessedResource)
	if err != nil {
		return false, err
	}
	return p.Has(requestID), nil
}
