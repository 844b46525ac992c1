package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/backup"
	"github.com/xraph/bits/company"
	"github.com/xraph/bits/governance"
	"github.com/xraph/bits/ratelimit"
	"github.com/xraph/bits/subscription"
	"github.com/xraph/bits/types"
)

// DefaultHookTimeout bounds a single plugin call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onTransfer             []OnTransfer
	onSubscriptionCreated  []OnSubscriptionCreated
	onSubscriptionCharged  []OnSubscriptionCharged
	onSubscriptionCanceled []OnSubscriptionCanceled
	onCompanyFounded       []OnCompanyFounded
	onMemberAdded          []OnMemberAdded
	onVoteCast             []OnVoteCast
	onElectionFinalized    []OnElectionFinalized
	onDriftCorrected       []OnDriftCorrected
	onAnomalyDetected      []OnAnomalyDetected
	onBackupCompleted      []OnBackupCompleted
	onRateLimited          []OnRateLimited
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnTransfer); ok {
		r.onTransfer = append(r.onTransfer, v)
	}
	if v, ok := p.(OnSubscriptionCreated); ok {
		r.onSubscriptionCreated = append(r.onSubscriptionCreated, v)
	}
	if v, ok := p.(OnSubscriptionCharged); ok {
		r.onSubscriptionCharged = append(r.onSubscriptionCharged, v)
	}
	if v, ok := p.(OnSubscriptionCanceled); ok {
		r.onSubscriptionCanceled = append(r.onSubscriptionCanceled, v)
	}
	if v, ok := p.(OnCompanyFounded); ok {
		r.onCompanyFounded = append(r.onCompanyFounded, v)
	}
	if v, ok := p.(OnMemberAdded); ok {
		r.onMemberAdded = append(r.onMemberAdded, v)
	}
	if v, ok := p.(OnVoteCast); ok {
		r.onVoteCast = append(r.onVoteCast, v)
	}
	if v, ok := p.(OnElectionFinalized); ok {
		r.onElectionFinalized = append(r.onElectionFinalized, v)
	}
	if v, ok := p.(OnDriftCorrected); ok {
		r.onDriftCorrected = append(r.onDriftCorrected, v)
	}
	if v, ok := p.(OnAnomalyDetected); ok {
		r.onAnomalyDetected = append(r.onAnomalyDetected, v)
	}
	if v, ok := p.(OnBackupCompleted); ok {
		r.onBackupCompleted = append(r.onBackupCompleted, v)
	}
	if v, ok := p.(OnRateLimited); ok {
		r.onRateLimited = append(r.onRateLimited, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnTransfer)(nil)).Elem(), "OnTransfer"},
	{reflect.TypeOf((*OnSubscriptionCreated)(nil)).Elem(), "OnSubscriptionCreated"},
	{reflect.TypeOf((*OnSubscriptionCharged)(nil)).Elem(), "OnSubscriptionCharged"},
	{reflect.TypeOf((*OnSubscriptionCanceled)(nil)).Elem(), "OnSubscriptionCanceled"},
	{reflect.TypeOf((*OnCompanyFounded)(nil)).Elem(), "OnCompanyFounded"},
	{reflect.TypeOf((*OnMemberAdded)(nil)).Elem(), "OnMemberAdded"},
	{reflect.TypeOf((*OnVoteCast)(nil)).Elem(), "OnVoteCast"},
	{reflect.TypeOf((*OnElectionFinalized)(nil)).Elem(), "OnElectionFinalized"},
	{reflect.TypeOf((*OnDriftCorrected)(nil)).Elem(), "OnDriftCorrected"},
	{reflect.TypeOf((*OnAnomalyDetected)(nil)).Elem(), "OnAnomalyDetected"},
	{reflect.TypeOf((*OnBackupCompleted)(nil)).Elem(), "OnBackupCompleted"},
	{reflect.TypeOf((*OnRateLimited)(nil)).Elem(), "OnRateLimited"},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch calls fn for each plugin, logging failures without stopping.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	dispatch(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitTransfer emits a committed transaction.
func (r *Registry) EmitTransfer(ctx context.Context, tx *account.Transaction) {
	dispatch(ctx, r, "OnTransfer", snapshot(r, &r.onTransfer), func(p OnTransfer) error {
		return p.OnTransfer(ctx, tx)
	})
}

// EmitSubscriptionCreated emits a subscription created event.
func (r *Registry) EmitSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) {
	dispatch(ctx, r, "OnSubscriptionCreated", snapshot(r, &r.onSubscriptionCreated), func(p OnSubscriptionCreated) error {
		return p.OnSubscriptionCreated(ctx, sub)
	})
}

// EmitSubscriptionCharged emits a successful recurring charge.
func (r *Registry) EmitSubscriptionCharged(ctx context.Context, sub *subscription.Subscription, tx *account.Transaction) {
	dispatch(ctx, r, "OnSubscriptionCharged", snapshot(r, &r.onSubscriptionCharged), func(p OnSubscriptionCharged) error {
		return p.OnSubscriptionCharged(ctx, sub, tx)
	})
}

// EmitSubscriptionCanceled emits a subscription canceled event.
func (r *Registry) EmitSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription, reason string) {
	dispatch(ctx, r, "OnSubscriptionCanceled", snapshot(r, &r.onSubscriptionCanceled), func(p OnSubscriptionCanceled) error {
		return p.OnSubscriptionCanceled(ctx, sub, reason)
	})
}

// EmitCompanyFounded emits a company founded event.
func (r *Registry) EmitCompanyFounded(ctx context.Context, co *company.Company) {
	dispatch(ctx, r, "OnCompanyFounded", snapshot(r, &r.onCompanyFounded), func(p OnCompanyFounded) error {
		return p.OnCompanyFounded(ctx, co)
	})
}

// EmitMemberAdded emits a member added event.
func (r *Registry) EmitMemberAdded(ctx context.Context, co *company.Company, member string) {
	dispatch(ctx, r, "OnMemberAdded", snapshot(r, &r.onMemberAdded), func(p OnMemberAdded) error {
		return p.OnMemberAdded(ctx, co, member)
	})
}

// EmitVoteCast emits a recorded vote.
func (r *Registry) EmitVoteCast(ctx context.Context, position, candidate, voter string) {
	dispatch(ctx, r, "OnVoteCast", snapshot(r, &r.onVoteCast), func(p OnVoteCast) error {
		return p.OnVoteCast(ctx, position, candidate, voter)
	})
}

// EmitElectionFinalized emits a finalized election.
func (r *Registry) EmitElectionFinalized(ctx context.Context, outcome *governance.Outcome) {
	dispatch(ctx, r, "OnElectionFinalized", snapshot(r, &r.onElectionFinalized), func(p OnElectionFinalized) error {
		return p.OnElectionFinalized(ctx, outcome)
	})
}

// EmitDriftCorrected emits self-healed balance drift.
func (r *Registry) EmitDriftCorrected(ctx context.Context, drifts []account.Drift) {
	dispatch(ctx, r, "OnDriftCorrected", snapshot(r, &r.onDriftCorrected), func(p OnDriftCorrected) error {
		return p.OnDriftCorrected(ctx, drifts)
	})
}

// EmitAnomalyDetected emits a detected inflation anomaly.
func (r *Registry) EmitAnomalyDetected(ctx context.Context, actual, expected types.Bits, frozenDir string) {
	dispatch(ctx, r, "OnAnomalyDetected", snapshot(r, &r.onAnomalyDetected), func(p OnAnomalyDetected) error {
		return p.OnAnomalyDetected(ctx, actual, expected, frozenDir)
	})
}

// EmitBackupCompleted emits a completed snapshot.
func (r *Registry) EmitBackupCompleted(ctx context.Context, man *backup.Manifest, elapsed time.Duration) {
	dispatch(ctx, r, "OnBackupCompleted", snapshot(r, &r.onBackupCompleted), func(p OnBackupCompleted) error {
		return p.OnBackupCompleted(ctx, man, elapsed)
	})
}

// EmitRateLimited emits a denied translator call.
func (r *Registry) EmitRateLimited(ctx context.Context, user, model string, decision ratelimit.Decision) {
	dispatch(ctx, r, "OnRateLimited", snapshot(r, &r.onRateLimited), func(p OnRateLimited) error {
		return p.OnRateLimited(ctx, user, model, decision)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger or a background job.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
