// Package observability provides a metrics extension for bits that records
// lifecycle event counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/backup"
	"github.com/xraph/bits/company"
	"github.com/xraph/bits/governance"
	"github.com/xraph/bits/plugin"
	"github.com/xraph/bits/ratelimit"
	"github.com/xraph/bits/subscription"
	"github.com/xraph/bits/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnTransfer             = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCharged  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCanceled = (*MetricsExtension)(nil)
	_ plugin.OnCompanyFounded       = (*MetricsExtension)(nil)
	_ plugin.OnMemberAdded          = (*MetricsExtension)(nil)
	_ plugin.OnVoteCast             = (*MetricsExtension)(nil)
	_ plugin.OnElectionFinalized    = (*MetricsExtension)(nil)
	_ plugin.OnDriftCorrected       = (*MetricsExtension)(nil)
	_ plugin.OnAnomalyDetected      = (*MetricsExtension)(nil)
	_ plugin.OnBackupCompleted      = (*MetricsExtension)(nil)
	_ plugin.OnRateLimited          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a bits plugin to track ledger activity.
type MetricsExtension struct {
	factory MetricFactory

	// Ledger metrics
	Transfers      Counter
	Minted         Counter
	Burned         Counter
	TransferAmount Histogram

	// Subscription metrics
	SubscriptionCreated  Counter
	SubscriptionCharged  Counter
	SubscriptionCanceled Counter

	// Company metrics
	CompanyFounded Counter
	MemberAdded    Counter

	// Governance metrics
	VotesCast         Counter
	ElectionFinalized Counter
	HolderChanged     Counter

	// Integrity metrics
	DriftCorrections Counter
	DriftAccounts    Counter
	Anomalies        Counter
	BackupCompleted  Counter
	BackupBytes      Histogram
	BackupLatency    Histogram

	// Rate limiting metrics
	RateLimited Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Ledger metrics
		Transfers:      factory.Counter("bits.ledger.transfers"),
		Minted:         factory.Counter("bits.ledger.minted"),
		Burned:         factory.Counter("bits.ledger.burned"),
		TransferAmount: factory.Histogram("bits.ledger.transfer.amount"),

		// Subscription metrics
		SubscriptionCreated:  factory.Counter("bits.subscription.created"),
		SubscriptionCharged:  factory.Counter("bits.subscription.charged"),
		SubscriptionCanceled: factory.Counter("bits.subscription.canceled"),

		// Company metrics
		CompanyFounded: factory.Counter("bits.company.founded"),
		MemberAdded:    factory.Counter("bits.company.members.added"),

		// Governance metrics
		VotesCast:         factory.Counter("bits.governance.votes"),
		ElectionFinalized: factory.Counter("bits.governance.elections.finalized"),
		HolderChanged:     factory.Counter("bits.governance.holder.changed"),

		// Integrity metrics
		DriftCorrections: factory.Counter("bits.integrity.drift.corrections"),
		DriftAccounts:    factory.Counter("bits.integrity.drift.accounts"),
		Anomalies:        factory.Counter("bits.integrity.anomalies"),
		BackupCompleted:  factory.Counter("bits.backup.completed"),
		BackupBytes:      factory.Histogram("bits.backup.bytes"),
		BackupLatency:    factory.Histogram("bits.backup.latency_ms"),

		// Rate limiting metrics
		RateLimited: factory.Counter("bits.ratelimit.denied"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnTransfer implements plugin.OnTransfer.
func (m *MetricsExtension) OnTransfer(_ context.Context, tx *account.Transaction) error {
	switch {
	case tx.From == account.Mint:
		m.Minted.Add(tx.Amount.Float64())
	case tx.To == account.Burn:
		m.Burned.Add(tx.Amount.Float64())
	default:
		m.Transfers.Inc()
		m.TransferAmount.Observe(tx.Amount.Float64())
	}
	return nil
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCreated.Inc()
	return nil
}

// OnSubscriptionCharged implements plugin.OnSubscriptionCharged.
func (m *MetricsExtension) OnSubscriptionCharged(_ context.Context, _ *subscription.Subscription, _ *account.Transaction) error {
	m.SubscriptionCharged.Inc()
	return nil
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (m *MetricsExtension) OnSubscriptionCanceled(_ context.Context, _ *subscription.Subscription, _ string) error {
	m.SubscriptionCanceled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Company hooks
// ──────────────────────────────────────────────────

// OnCompanyFounded implements plugin.OnCompanyFounded.
func (m *MetricsExtension) OnCompanyFounded(_ context.Context, _ *company.Company) error {
	m.CompanyFounded.Inc()
	return nil
}

// OnMemberAdded implements plugin.OnMemberAdded.
func (m *MetricsExtension) OnMemberAdded(_ context.Context, _ *company.Company, _ string) error {
	m.MemberAdded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Governance hooks
// ──────────────────────────────────────────────────

// OnVoteCast implements plugin.OnVoteCast.
func (m *MetricsExtension) OnVoteCast(_ context.Context, _, _, _ string) error {
	m.VotesCast.Inc()
	return nil
}

// OnElectionFinalized implements plugin.OnElectionFinalized.
func (m *MetricsExtension) OnElectionFinalized(_ context.Context, o *governance.Outcome) error {
	m.ElectionFinalized.Inc()
	if o.Changed {
		m.HolderChanged.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Integrity hooks
// ──────────────────────────────────────────────────

// OnDriftCorrected implements plugin.OnDriftCorrected.
func (m *MetricsExtension) OnDriftCorrected(_ context.Context, drifts []account.Drift) error {
	m.DriftCorrections.Inc()
	m.DriftAccounts.Add(float64(len(drifts)))
	return nil
}

// OnAnomalyDetected implements plugin.OnAnomalyDetected.
func (m *MetricsExtension) OnAnomalyDetected(_ context.Context, _, _ types.Bits, _ string) error {
	m.Anomalies.Inc()
	return nil
}

// OnBackupCompleted implements plugin.OnBackupCompleted.
func (m *MetricsExtension) OnBackupCompleted(_ context.Context, man *backup.Manifest, elapsed time.Duration) error {
	m.BackupCompleted.Inc()
	m.BackupBytes.Observe(float64(man.Bytes))
	m.BackupLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Rate limiting hooks
// ──────────────────────────────────────────────────

// OnRateLimited implements plugin.OnRateLimited.
func (m *MetricsExtension) OnRateLimited(_ context.Context, _, _ string, _ ratelimit.Decision) error {
	m.RateLimited.Inc()
	return nil
}
