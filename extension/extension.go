// Package extension provides the Forge extension adapter for Bits.
//
// It implements the forge.Extension interface to integrate the Bits engine
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.bits" or "bits" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/bits"
	"github.com/xraph/bits/store"
	"github.com/xraph/bits/store/file"
	"github.com/xraph/bits/store/memory"
	"github.com/xraph/bits/store/mongo"
	"github.com/xraph/bits/store/postgres"
	"github.com/xraph/bits/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "bits"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Community virtual-currency ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the Bits engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *bits.Engine
	store      store.Store
	grove      *grove.DB
	engineOpts []bits.Option
}

// New creates a new Bits Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *bits.Engine { return e.engine }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := OpenStore(e.config.Store, e.grove)
		if err != nil {
			return err
		}
		e.store = s
	}

	opts := append(e.config.Options(), e.engineOpts...)
	e.engine = bits.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*bits.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("bits: extension not initialized")
	}

	if !e.config.DisableStart {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(ctx context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(ctx); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension]. A frozen ledger is unhealthy.
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("bits: store not initialized")
	}
	if e.engine != nil && e.engine.Frozen() {
		return bits.ErrIntegrityAnomaly
	}
	return e.store.Ping(ctx)
}

// OpenStore builds the backend named by cfg.Driver. The grove drivers
// require db.
func OpenStore(cfg StoreConfig, db *grove.DB) (store.Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return memory.New(memory.WithLockTimeout(cfg.LockTimeout)), nil
	case DriverFile:
		return file.New(cfg.DataDir, file.WithLockTimeout(cfg.LockTimeout))
	case DriverSQLite, DriverPostgres, DriverMongo:
		if db == nil {
			return nil, fmt.Errorf("bits: driver %s needs a grove database", cfg.Driver)
		}
	default:
		return nil, fmt.Errorf("bits: unknown store driver %q", cfg.Driver)
	}

	switch cfg.Driver {
	case DriverSQLite:
		return sqlite.New(db), nil
	case DriverPostgres:
		return postgres.New(db), nil
	default:
		return mongo.New(db), nil
	}
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("bits: configuration is required but not found in config files; " +
				"ensure 'extensions.bits' or 'bits' key exists in your config")
		}
		e.config = programmaticConfig.withDefaults()
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	if err := e.config.Validate(); err != nil {
		return fmt.Errorf("bits: invalid configuration: %w", err)
	}

	e.Logger().Debug("bits: configuration loaded",
		forge.F("disable_start", e.config.DisableStart),
		forge.F("store_driver", e.config.Store.Driver),
		forge.F("backup_dir", e.config.Backup.Dir),
		forge.F("billing_interval", e.config.Schedule.Billing),
		forge.F("election_term", e.config.ElectionTerm),
		forge.F("models", len(e.config.Models)),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.bits", "bits"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("bits: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("bits: failed to bind config", forge.F("key", key))
	}

	return Config{}, false
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableStart {
		yamlConfig.DisableStart = true
	}
	if yamlConfig.Store.Driver == "" {
		yamlConfig.Store.Driver = programmaticConfig.Store.Driver
	}
	if yamlConfig.Store.DataDir == "" {
		yamlConfig.Store.DataDir = programmaticConfig.Store.DataDir
	}
	if yamlConfig.Backup.Dir == "" {
		yamlConfig.Backup.Dir = programmaticConfig.Backup.Dir
	}
	if yamlConfig.ElectionTerm == 0 {
		yamlConfig.ElectionTerm = programmaticConfig.ElectionTerm
	}
	if yamlConfig.Timezone == "" {
		yamlConfig.Timezone = programmaticConfig.Timezone
	}
	if len(yamlConfig.Models) == 0 {
		yamlConfig.Models = programmaticConfig.Models
	}
	return yamlConfig.withDefaults()
}
