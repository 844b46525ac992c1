package extension

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/bits"
	"github.com/xraph/bits/backup"
	"github.com/xraph/bits/governance"
	"github.com/xraph/bits/ratelimit"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// StoreConfig selects the resource store backend.
type StoreConfig struct {
	// Driver is one of memory, file, sqlite, postgres or mongo (default:
	// memory). The grove drivers need a database supplied with WithGroveDB.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DataDir is the resource directory of the file driver.
	DataDir string `json:"data_dir" mapstructure:"data_dir" yaml:"data_dir"`

	// LockTimeout bounds how long a writer waits for a resource lock
	// (default: 10s).
	LockTimeout time.Duration `json:"lock_timeout" mapstructure:"lock_timeout" yaml:"lock_timeout"`
}

// BackupConfig controls snapshots and retention.
type BackupConfig struct {
	// Dir receives snapshots and frozen evidence. Empty disables backups.
	// It must not be inside the store's DataDir.
	Dir string `json:"dir" mapstructure:"dir" yaml:"dir"`

	// Keep is the number of snapshots retained (default: 10).
	Keep int `json:"keep" mapstructure:"keep" yaml:"keep"`

	// UsageRetention bounds the rate-limit history kept by the integrity
	// job (default: 30 days).
	UsageRetention time.Duration `json:"usage_retention" mapstructure:"usage_retention" yaml:"usage_retention"`
}

// ScheduleConfig sets the background job intervals. A negative interval
// disables the job.
type ScheduleConfig struct {
	Billing    time.Duration `json:"billing" mapstructure:"billing" yaml:"billing"`
	Governance time.Duration `json:"governance" mapstructure:"governance" yaml:"governance"`
	Integrity  time.Duration `json:"integrity" mapstructure:"integrity" yaml:"integrity"`
}

// Config holds the Bits extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.bits" or "bits" keys).
type Config struct {
	// DisableStart prevents the engine from migrating the store and
	// starting its background jobs on start.
	DisableStart bool `json:"disable_start" mapstructure:"disable_start" yaml:"disable_start"`

	Store    StoreConfig    `json:"store" mapstructure:"store" yaml:"store"`
	Backup   BackupConfig   `json:"backup" mapstructure:"backup" yaml:"backup"`
	Schedule ScheduleConfig `json:"schedule" mapstructure:"schedule" yaml:"schedule"`

	// ElectionTerm is the length of a presidential term (default: 7 days).
	ElectionTerm time.Duration `json:"election_term" mapstructure:"election_term" yaml:"election_term"`

	// Timezone renders notification timestamps (default: Local).
	Timezone string `json:"timezone" mapstructure:"timezone" yaml:"timezone"`

	// Models lists translator models in preference order. Empty uses
	// ratelimit.DefaultModels.
	Models []ratelimit.Model `json:"models" mapstructure:"models" yaml:"models"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Driver:      DriverMemory,
			LockTimeout: 10 * time.Second,
		},
		Backup: BackupConfig{
			Keep:           backup.DefaultKeep,
			UsageRetention: ratelimit.Retention,
		},
		Schedule: ScheduleConfig{
			Billing:    bits.DefaultBillingInterval,
			Governance: bits.DefaultGovernanceInterval,
			Integrity:  bits.DefaultIntegrityInterval,
		},
		ElectionTerm: governance.DefaultTerm,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Store.Driver == "" {
		c.Store.Driver = d.Store.Driver
	}
	c.Store.Driver = strings.ToLower(c.Store.Driver)
	if c.Store.LockTimeout == 0 {
		c.Store.LockTimeout = d.Store.LockTimeout
	}
	if c.Backup.Keep == 0 {
		c.Backup.Keep = d.Backup.Keep
	}
	if c.Backup.UsageRetention == 0 {
		c.Backup.UsageRetention = d.Backup.UsageRetention
	}
	if c.Schedule.Billing == 0 {
		c.Schedule.Billing = d.Schedule.Billing
	}
	if c.Schedule.Governance == 0 {
		c.Schedule.Governance = d.Schedule.Governance
	}
	if c.Schedule.Integrity == 0 {
		c.Schedule.Integrity = d.Schedule.Integrity
	}
	if c.ElectionTerm == 0 {
		c.ElectionTerm = d.ElectionTerm
	}
	return c
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs bits.MultiError

	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverMongo:
	case DriverFile:
		if c.Store.DataDir == "" {
			errs.Add(bits.ValidationError{Field: "store.data_dir", Message: "required by the file driver"})
		}
	default:
		errs.Add(bits.ValidationError{Field: "store.driver", Message: fmt.Sprintf("unknown driver %q", c.Store.Driver)})
	}
	if c.Backup.Dir != "" && c.Store.DataDir != "" && within(c.Backup.Dir, c.Store.DataDir) {
		errs.Add(bits.ValidationError{Field: "backup.dir", Message: "must not be inside store.data_dir"})
	}
	if c.Backup.Keep < 0 {
		errs.Add(bits.ValidationError{Field: "backup.keep", Message: "must not be negative"})
	}
	if c.ElectionTerm < 0 {
		errs.Add(bits.ValidationError{Field: "election_term", Message: "must not be negative"})
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs.Add(bits.ValidationError{Field: "timezone", Message: err.Error()})
		}
	}
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		field := fmt.Sprintf("models[%d].name", i)
		switch {
		case m.Name == "":
			errs.Add(bits.ValidationError{Field: field, Message: "required"})
		case seen[m.Name]:
			errs.Add(bits.ValidationError{Field: field, Message: "duplicate model " + m.Name})
		}
		seen[m.Name] = true
	}
	return errs.Err()
}

// Location returns the configured timezone.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Options converts the config into engine options.
func (c Config) Options() []bits.Option {
	opts := []bits.Option{
		bits.WithSchedule(c.Schedule.Billing, c.Schedule.Governance, c.Schedule.Integrity),
		bits.WithTerm(c.ElectionTerm),
		bits.WithLocation(c.Location()),
		bits.WithUsageRetention(c.Backup.UsageRetention),
	}
	if c.Backup.Dir != "" {
		opts = append(opts, bits.WithBackupDir(c.Backup.Dir), bits.WithBackupRetention(c.Backup.Keep))
	}
	if len(c.Models) > 0 {
		opts = append(opts, bits.WithModels(c.Models))
	}
	return opts
}

// LoadConfig reads a YAML document from path, fills defaults and validates
// the result. The document may nest the config under a "bits" key.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("bits: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(data []byte) (Config, error) {
	var doc struct {
		Bits *Config `yaml:"bits"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("bits: parse config: %w", err)
	}
	var cfg Config
	if doc.Bits != nil {
		cfg = *doc.Bits
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("bits: parse config: %w", err)
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("bits: invalid configuration: %w", err)
	}
	return cfg, nil
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
