package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bits"
	"github.com/xraph/bits/plugin"
	"github.com/xraph/bits/ratelimit"
	"github.com/xraph/bits/store"
)

// Option configures the Bits Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine, overriding Config.Store.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB supplies the database used by the sqlite, postgres and mongo
// drivers.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.grove = db
	}
}

// WithEngineOption passes a bits.Option through to the underlying engine.
func WithEngineOption(opt bits.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, bits.WithPlugin(p))
	}
}

// WithTranslator sets the natural-language translator.
func WithTranslator(t bits.Translator) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, bits.WithTranslator(t))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableStart prevents migration and background jobs on start.
func WithDisableStart() Option {
	return func(e *Extension) { e.config.DisableStart = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithDriver selects the store driver.
func WithDriver(driver string) Option {
	return func(e *Extension) { e.config.Store.Driver = driver }
}

// WithDataDir sets the file driver's resource directory.
func WithDataDir(dir string) Option {
	return func(e *Extension) { e.config.Store.DataDir = dir }
}

// WithBackupDir enables snapshots under dir.
func WithBackupDir(dir string) Option {
	return func(e *Extension) { e.config.Backup.Dir = dir }
}

// WithElectionTerm sets the presidential term length.
func WithElectionTerm(d time.Duration) Option {
	return func(e *Extension) { e.config.ElectionTerm = d }
}

// WithModels sets the translator models in preference order.
func WithModels(models []ratelimit.Model) Option {
	return func(e *Extension) { e.config.Models = models }
}
