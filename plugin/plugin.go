// Package plugin provides an extensible plugin system for bits.
// Plugins can hook into ledger, billing, governance and integrity events.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/backup"
	"github.com/xraph/bits/company"
	"github.com/xraph/bits/governance"
	"github.com/xraph/bits/ratelimit"
	"github.com/xraph/bits/subscription"
	"github.com/xraph/bits/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnTransfer is called after a transaction is committed. Mint and burn
// transactions carry the sentinel account as counterparty.
type OnTransfer interface {
	Plugin
	OnTransfer(ctx context.Context, tx *account.Transaction) error
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated is called when a subscription is created or replaced.
type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionCharged is called after a successful recurring charge.
type OnSubscriptionCharged interface {
	Plugin
	OnSubscriptionCharged(ctx context.Context, sub *subscription.Subscription, tx *account.Transaction) error
}

// OnSubscriptionCanceled is called when a subscription is removed, either
// by the payer or because a charge failed.
type OnSubscriptionCanceled interface {
	Plugin
	OnSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription, reason string) error
}

// ──────────────────────────────────────────────────
// Company hooks
// ──────────────────────────────────────────────────

// OnCompanyFounded is called when a company is registered.
type OnCompanyFounded interface {
	Plugin
	OnCompanyFounded(ctx context.Context, co *company.Company) error
}

// OnMemberAdded is called when a member joins a company.
type OnMemberAdded interface {
	Plugin
	OnMemberAdded(ctx context.Context, co *company.Company, member string) error
}

// ──────────────────────────────────────────────────
// Governance hooks
// ──────────────────────────────────────────────────

// OnVoteCast is called after a vote is recorded.
type OnVoteCast interface {
	Plugin
	OnVoteCast(ctx context.Context, position, candidate, voter string) error
}

// OnElectionFinalized is called for every election closed at term end.
type OnElectionFinalized interface {
	Plugin
	OnElectionFinalized(ctx context.Context, outcome *governance.Outcome) error
}

// ──────────────────────────────────────────────────
// Integrity hooks
// ──────────────────────────────────────────────────

// OnDriftCorrected is called when the verifier overwrote mismatched accounts.
type OnDriftCorrected interface {
	Plugin
	OnDriftCorrected(ctx context.Context, drifts []account.Drift) error
}

// OnAnomalyDetected is called when stored balances exceed what the
// transaction log accounts for.
type OnAnomalyDetected interface {
	Plugin
	OnAnomalyDetected(ctx context.Context, actual, expected types.Bits, frozenDir string) error
}

// OnBackupCompleted is called after a snapshot is written.
type OnBackupCompleted interface {
	Plugin
	OnBackupCompleted(ctx context.Context, man *backup.Manifest, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Rate limiting hooks
// ──────────────────────────────────────────────────

// OnRateLimited is called when a translator call is denied.
type OnRateLimited interface {
	Plugin
	OnRateLimited(ctx context.Context, user, model string, decision ratelimit.Decision) error
}
