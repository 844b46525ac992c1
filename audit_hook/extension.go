// Package audithook bridges bits lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular sink. Callers inject a RecorderFunc adapter, or the Kafka
// publisher from events/kafka, at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/backup"
	"github.com/xraph/bits/company"
	"github.com/xraph/bits/governance"
	"github.com/xraph/bits/id"
	"github.com/xraph/bits/plugin"
	"github.com/xraph/bits/ratelimit"
	"github.com/xraph/bits/subscription"
	"github.com/xraph/bits/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnTransfer             = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated  = (*Extension)(nil)
	_ plugin.OnSubscriptionCharged  = (*Extension)(nil)
	_ plugin.OnSubscriptionCanceled = (*Extension)(nil)
	_ plugin.OnCompanyFounded       = (*Extension)(nil)
	_ plugin.OnMemberAdded          = (*Extension)(nil)
	_ plugin.OnVoteCast             = (*Extension)(nil)
	_ plugin.OnElectionFinalized    = (*Extension)(nil)
	_ plugin.OnDriftCorrected       = (*Extension)(nil)
	_ plugin.OnAnomalyDetected      = (*Extension)(nil)
	_ plugin.OnBackupCompleted      = (*Extension)(nil)
	_ plugin.OnRateLimited          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	ID         string         `json:"id"`
	Time       time.Time      `json:"time"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges bits lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnTransfer implements plugin.OnTransfer.
func (e *Extension) OnTransfer(ctx context.Context, tx *account.Transaction) error {
	action := ActionTransfer
	switch {
	case tx.From == account.Mint:
		action = ActionMint
	case tx.To == account.Burn:
		action = ActionBurn
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID.String(), CategoryLedger, nil,
		"from", tx.From,
		"to", tx.To,
		"amount", tx.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategoryBilling, nil,
		"payer", sub.Payer,
		"payee", sub.Payee,
		"amount", sub.Amount.String(),
		"cycle", string(sub.Cycle),
	)
}

// OnSubscriptionCharged implements plugin.OnSubscriptionCharged.
func (e *Extension) OnSubscriptionCharged(ctx context.Context, sub *subscription.Subscription, tx *account.Transaction) error {
	return e.record(ctx, ActionSubscriptionCharged, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategoryBilling, nil,
		"payer", sub.Payer,
		"payee", sub.Payee,
		"amount", sub.Amount.String(),
		"transaction_id", tx.ID.String(),
		"next_payment", sub.NextPayment,
	)
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (e *Extension) OnSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription, reason string) error {
	return e.record(ctx, ActionSubscriptionCanceled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategoryBilling, nil,
		"payer", sub.Payer,
		"payee", sub.Payee,
		"cancel_reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Company hooks
// ──────────────────────────────────────────────────

// OnCompanyFounded implements plugin.OnCompanyFounded.
func (e *Extension) OnCompanyFounded(ctx context.Context, co *company.Company) error {
	return e.record(ctx, ActionCompanyFounded, SeverityInfo, OutcomeSuccess,
		ResourceCompany, co.ID.String(), CategoryAccess, nil,
		"company", co.Name,
		"founder", co.Founder,
	)
}

// OnMemberAdded implements plugin.OnMemberAdded.
func (e *Extension) OnMemberAdded(ctx context.Context, co *company.Company, member string) error {
	return e.record(ctx, ActionMemberAdded, SeverityInfo, OutcomeSuccess,
		ResourceCompany, co.ID.String(), CategoryAccess, nil,
		"company", co.Name,
		"member", member,
	)
}

// ──────────────────────────────────────────────────
// Governance hooks
// ──────────────────────────────────────────────────

// OnVoteCast implements plugin.OnVoteCast.
func (e *Extension) OnVoteCast(ctx context.Context, position, candidate, voter string) error {
	return e.record(ctx, ActionVoteCast, SeverityInfo, OutcomeSuccess,
		ResourceElection, position, CategoryGovernance, nil,
		"candidate", candidate,
		"voter", voter,
	)
}

// OnElectionFinalized implements plugin.OnElectionFinalized.
func (e *Extension) OnElectionFinalized(ctx context.Context, o *governance.Outcome) error {
	return e.record(ctx, ActionElectionFinalized, SeverityInfo, OutcomeSuccess,
		ResourceElection, o.Position, CategoryGovernance, nil,
		"previous_holder", o.PreviousHolder,
		"holder", o.Holder,
		"votes", o.Votes,
		"changed", o.Changed,
	)
}

// ──────────────────────────────────────────────────
// Integrity hooks
// ──────────────────────────────────────────────────

// OnDriftCorrected implements plugin.OnDriftCorrected. Drift correction is
// a warning, distinct from the critical anomaly event.
func (e *Extension) OnDriftCorrected(ctx context.Context, drifts []account.Drift) error {
	accounts := make([]string, 0, len(drifts))
	for _, d := range drifts {
		accounts = append(accounts, d.Account)
	}
	return e.record(ctx, ActionDriftCorrected, SeverityWarning, OutcomePartial,
		ResourceBalances, "", CategoryIntegrity, nil,
		"accounts", accounts,
		"count", len(drifts),
	)
}

// OnAnomalyDetected implements plugin.OnAnomalyDetected.
func (e *Extension) OnAnomalyDetected(ctx context.Context, actual, expected types.Bits, frozenDir string) error {
	return e.record(ctx, ActionAnomalyDetected, SeverityCritical, OutcomeFailure,
		ResourceBalances, "", CategoryIntegrity, nil,
		"actual_total", actual.String(),
		"expected_total", expected.String(),
		"excess", actual.Sub(expected).String(),
		"frozen_dir", frozenDir,
	)
}

// OnBackupCompleted implements plugin.OnBackupCompleted.
func (e *Extension) OnBackupCompleted(ctx context.Context, man *backup.Manifest, elapsed time.Duration) error {
	return e.record(ctx, ActionBackupCompleted, SeverityInfo, OutcomeSuccess,
		ResourceBackup, man.ID.String(), CategoryIntegrity, nil,
		"snapshot", man.Name,
		"resources", len(man.Resources),
		"bytes", man.Bytes,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Rate limiting hooks
// ──────────────────────────────────────────────────

// OnRateLimited implements plugin.OnRateLimited.
func (e *Extension) OnRateLimited(ctx context.Context, user, model string, d ratelimit.Decision) error {
	return e.record(ctx, ActionRateLimited, SeverityInfo, OutcomeFailure,
		ResourceTranslator, model, CategoryAccess, nil,
		"user", user,
		"window", string(d.Reason),
		"used", d.Count,
		"limit", d.Limit,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		ID:         id.NewEventID().String(),
		Time:       e.now().UTC(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
