// Package store defines the persistence boundary for bits.
//
// Every piece of state is a named resource persisted as one JSON document.
// Readers see either the previous or the next complete document, never a
// partial write. Read-modify-write goes through UpdateRaw (or the typed
// Update helper), which holds the resource lock for the whole transform.
package store

import (
	"context"
	"errors"
	"strings"
)

// Resource names. Multi-resource operations acquire locks in the order the
// names are listed here to keep lock acquisition deadlock-free.
const (
	Subscriptions   = "subscriptions"
	Companies       = "companies"
	Governance      = "governance"
	Balances        = "balances"
	Transactions    = "transactions"
	RateLimitGlobal = "ratelimit/global"
	RateLimitUsers  = "ratelimit/users"
	Notifications   = "notifications/"
	Preferences     = "preferences/"
	Processed       = "processed"
)

// Store errors.
//
// ErrConflict means another writer replaced the document after it was
// loaded. Updates nested inside the failed transform have already
// committed, so the outer state is indeterminate until reconciled.
var (
	ErrLockTimeout = errors.New("store: lock acquisition timed out")
	ErrConflict    = errors.New("store: concurrent modification")
	ErrStoreClosed = errors.New("store: store is closed")
	ErrStoreFatal  = errors.New("store: i/o failed after retries")
	ErrInvalidName = errors.New("store: invalid resource name")
)

// TransformFunc receives the current document (nil when absent) and returns
// the replacement. Returning nil bytes with a nil error leaves the resource
// untouched.
type TransformFunc func(current []byte) ([]byte, error)

// Store is the storage interface every backend implements.
type Store interface {
	// ReadRaw returns the stored document, or nil if it does not exist.
	// Reads take no lock.
	ReadRaw(ctx context.Context, name string) ([]byte, error)

	// UpdateRaw runs fn under the resource lock and atomically replaces the
	// document with its result. Lock acquisition fails with ErrLockTimeout
	// once the backend's wait bound is exceeded.
	UpdateRaw(ctx context.Context, name string, fn TransformFunc) error

	// Names lists stored resource names starting with prefix, sorted.
	Names(ctx context.Context, prefix string) ([]string, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// ValidName reports whether name is usable as a resource name: non-empty
// segments of [a-z0-9_-] separated by "/".
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" {
			return false
		}
		for _, r := range seg {
			ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
			if !ok {
				return false
			}
		}
	}
	return true
}

// LikePrefix returns a SQL LIKE pattern matching names that start with
// prefix literally. Use it with ESCAPE '\'.
func LikePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// NotificationsFor returns the mailbox resource name for user.
func NotificationsFor(user string) string { return Notifications + user }

// PreferencesFor returns the preferences resource name for user.
func PreferencesFor(user string) string { return Preferences + user }
