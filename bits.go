package bits

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/bits/backup"
	"github.com/xraph/bits/governance"
	"github.com/xraph/bits/plugin"
	"github.com/xraph/bits/ratelimit"
	"github.com/xraph/bits/scheduler"
	"github.com/xraph/bits/store"
)

// Default job intervals.
const (
	DefaultBillingInterval    = 60 * time.Second
	DefaultGovernanceInterval = time.Hour
	DefaultIntegrityInterval  = 10 * time.Minute
)

// Job names registered with the scheduler.
const (
	JobBilling    = "billing"
	JobGovernance = "governance"
	JobIntegrity  = "integrity"
)

// Engine is the bits ledger. Every operation is safe for concurrent use;
// coordination happens through the store's per-resource locks.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time
	loc     *time.Location

	limits     *ratelimit.Table
	translator Translator
	term       time.Duration

	// Backups
	backupDir      string
	backupKeep     int
	usageRetention time.Duration
	backupsOnce    sync.Once
	backups        *backup.Manager
	backupsErr     error

	// Background jobs
	billingInterval    time.Duration
	governanceInterval time.Duration
	integrityInterval  time.Duration
	sched              *scheduler.Scheduler

	frozen  atomic.Bool
	mu      sync.Mutex
	started bool
}

// New creates a new Engine over s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:              s,
		plugins:            plugin.NewRegistry(),
		logger:             slog.Default(),
		now:                time.Now,
		loc:                time.Local,
		limits:             ratelimit.NewTable(ratelimit.DefaultModels()),
		term:               governance.DefaultTerm,
		backupKeep:         backup.DefaultKeep,
		usageRetention:     ratelimit.Retention,
		billingInterval:    DefaultBillingInterval,
		governanceInterval: DefaultGovernanceInterval,
		integrityInterval:  DefaultIntegrityInterval,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock replaces the wall clock. Used by tests to drive billing,
// elections and rate-limit windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone notification timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithBackupDir enables snapshots and anomaly freezing under dir. The
// directory must not be inside a file store's data directory.
func WithBackupDir(dir string) Option {
	return func(e *Engine) { e.backupDir = dir }
}

// WithBackupRetention sets how many snapshots are kept.
func WithBackupRetention(keep int) Option {
	return func(e *Engine) {
		if keep > 0 {
			e.backupKeep = keep
		}
	}
}

// WithUsageRetention sets how long rate-limit history is kept by the
// integrity job.
func WithUsageRetention(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.usageRetention = d
		}
	}
}

// WithModels sets the translator models in preference order.
func WithModels(models []ratelimit.Model) Option {
	return func(e *Engine) { e.limits = ratelimit.NewTable(models) }
}

// WithTranslator sets the natural-language translator.
func WithTranslator(t Translator) Option {
	return func(e *Engine) { e.translator = t }
}

// WithTerm sets the election term length.
func WithTerm(term time.Duration) Option {
	return func(e *Engine) {
		if term > 0 {
			e.term = term
		}
	}
}

// WithSchedule sets the background job intervals. A non-positive interval
// disables that job.
func WithSchedule(billing, governance, integrity time.Duration) Option {
	return func(e *Engine) {
		e.billingInterval = billing
		e.governanceInterval = governance
		e.integrityInterval = integrity
	}
}

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Store returns the backing store.
func (e *Engine) Store() store.Store { return e.store }

// Models lists the configured translator models in preference order.
func (e *Engine) Models() []ratelimit.Model { return e.limits.Models() }

// Start migrates the store and begins the background jobs.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}

	// Migrate database
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	e.sched = scheduler.New(scheduler.WithLogger(e.logger), scheduler.WithBaseContext(context.WithoutCancel(ctx)))
	jobs := []struct {
		name     string
		interval time.Duration
		job      scheduler.Job
	}{
		{JobBilling, e.billingInterval, e.billingJob},
		{JobGovernance, e.governanceInterval, e.governanceJob},
		{JobIntegrity, e.integrityInterval, e.IntegrityTick},
	}
	for _, j := range jobs {
		if j.interval <= 0 {
			continue
		}
		if err := e.sched.Every(j.name, j.interval, j.job); err != nil {
			return fmt.Errorf("bits: schedule %s: %w", j.name, err)
		}
	}
	e.sched.Start()
	e.started = true

	e.logger.Info("bits engine started",
		"billing_interval", e.billingInterval,
		"governance_interval", e.governanceInterval,
		"integrity_interval", e.integrityInterval,
		"backup_dir", e.backupDir,
		"models", len(e.limits.Names()),
	)

	return nil
}

// RunJob runs a registered background job once on the caller's goroutine.
func (e *Engine) RunJob(name string) error {
	e.mu.Lock()
	sched := e.sched
	e.mu.Unlock()
	if sched == nil {
		return ErrNotStarted
	}
	return sched.RunNow(name)
}

// Stop prevents new ticks, waits for running ones and closes the store.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs MultiError
	if e.sched != nil {
		errs.Add(e.sched.Stop(ctx))
		e.sched = nil
	}
	e.started = false

	e.plugins.EmitShutdown(ctx)
	errs.Add(e.store.Close())

	e.logger.Info("bits engine stopped")
	return errs.Err()
}

func (e *Engine) billingJob(ctx context.Context) error {
	_, err := e.ProcessSubscriptions(ctx)
	return err
}

func (e *Engine) governanceJob(ctx context.Context) error {
	_, err := e.FinalizeElections(ctx)
	return err
}

// backupManager opens the backup root on first use.
func (e *Engine) backupManager() (*backup.Manager, error) {
	if e.backupDir == "" {
		return nil, ErrBackupDisabled
	}
	e.backupsOnce.Do(func() {
		e.backups, e.backupsErr = backup.New(e.backupDir,
			backup.WithKeep(e.backupKeep),
			backup.WithClock(e.now),
			backup.WithLogger(e.logger),
		)
	})
	return e.backups, e.backupsErr
}
