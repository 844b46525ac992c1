// Package id defines TypeID-based identifiers for bits records.
//
// Transactions, subscriptions, companies, backup snapshots and audit events
// carry an ID whose prefix names the record type. IDs are K-sortable
// (UUIDv7-based) and render as "prefix_suffix".
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record type encoded in a TypeID.
type Prefix string

// Prefix constants for bits record types.
const (
	PrefixTransaction  Prefix = "tx"   // Ledger transaction
	PrefixSubscription Prefix = "sub"  // Recurring payment
	PrefixCompany      Prefix = "co"   // Pooled company account
	PrefixSnapshot     Prefix = "snap" // Backup snapshot
	PrefixEvent        Prefix = "evt"  // Audit event
)

// ID wraps a TypeID.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receiver for UnmarshalText.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "tx_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ──────────────────────────────────────────────────
// Aliases and constructors
// ──────────────────────────────────────────────────

// TransactionID identifies a ledger transaction (prefix: "tx").
type TransactionID = ID

// SubscriptionID identifies a subscription (prefix: "sub").
type SubscriptionID = ID

// CompanyID identifies a company (prefix: "co").
type CompanyID = ID

// SnapshotID identifies a backup snapshot (prefix: "snap").
type SnapshotID = ID

// NewTransactionID generates a new transaction ID.
func NewTransactionID() ID { return New(PrefixTransaction) }

// NewSubscriptionID generates a new subscription ID.
func NewSubscriptionID() ID { return New(PrefixSubscription) }

// NewCompanyID generates a new company ID.
func NewCompanyID() ID { return New(PrefixCompany) }

// NewSnapshotID generates a new snapshot ID.
func NewSnapshotID() ID { return New(PrefixSnapshot) }

// NewEventID generates a new audit event ID.
func NewEventID() ID { return New(PrefixEvent) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Records written before IDs existed decode as Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
