package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/bits/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"TransactionID", id.NewTransactionID, "tx_"},
		{"SubscriptionID", id.NewSubscriptionID, "sub_"},
		{"CompanyID", id.NewCompanyID, "co_"},
		{"SnapshotID", id.NewSnapshotID, "snap_"},
		{"EventID", id.NewEventID, "evt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix id.Prefix
	}{
		{"TransactionID", id.NewTransactionID, id.PrefixTransaction},
		{"SubscriptionID", id.NewSubscriptionID, id.PrefixSubscription},
		{"CompanyID", id.NewCompanyID, id.PrefixCompany},
		{"SnapshotID", id.NewSnapshotID, id.PrefixSnapshot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := id.Parse(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
			if parsed.Prefix() != tt.prefix {
				t.Errorf("prefix = %q, want %q", parsed.Prefix(), tt.prefix)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"tx_", "not an id", "TX_01h2xcejqtf2nbrexx3vqjhp41"} {
		if _, err := id.Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestJSONField(t *testing.T) {
	type record struct {
		ID id.ID `json:"id"`
	}

	original := record{ID: id.NewTransactionID()}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored record
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored.ID.String() != original.ID.String() {
		t.Errorf("mismatch: %q != %q", restored.ID.String(), original.ID.String())
	}

	// Legacy records without ids decode as Nil.
	var legacy record
	if err := json.Unmarshal([]byte(`{"id":""}`), &legacy); err != nil {
		t.Fatalf("unmarshal legacy: %v", err)
	}
	if !legacy.ID.IsNil() {
		t.Error("expected nil id for empty string")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewTransactionID()
	b := id.NewTransactionID()
	if a.String() == b.String() {
		t.Errorf("two consecutive NewTransactionID() calls returned the same ID: %q", a.String())
	}
}
