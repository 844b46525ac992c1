package extension

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/bits"
	"github.com/xraph/bits/backup"
	"github.com/xraph/bits/store/file"
	"github.com/xraph/bits/store/memory"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("timezone: UTC\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Errorf("driver = %q", cfg.Store.Driver)
	}
	if cfg.Backup.Keep != backup.DefaultKeep {
		t.Errorf("keep = %d", cfg.Backup.Keep)
	}
	if cfg.Schedule.Billing != bits.DefaultBillingInterval {
		t.Errorf("billing = %v", cfg.Schedule.Billing)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("location = %v", cfg.Location())
	}
}

func TestParseConfigNested(t *testing.T) {
	doc := `
bits:
  store:
    driver: FILE
    data_dir: /var/lib/bits/data
  backup:
    dir: /var/lib/bits/backups
    keep: 3
  schedule:
    billing: 30s
    integrity: -1s
  election_term: 48h
  models:
    - name: fast
      limits:
        global_per_minute: 5
`
	cfg, err := ParseConfig([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Driver != DriverFile || cfg.Store.DataDir != "/var/lib/bits/data" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Backup.Keep != 3 || cfg.Schedule.Billing != 30*time.Second || cfg.Schedule.Integrity >= 0 {
		t.Errorf("backup/schedule = %+v %+v", cfg.Backup, cfg.Schedule)
	}
	if cfg.ElectionTerm != 48*time.Hour {
		t.Errorf("term = %v", cfg.ElectionTerm)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].Limits.GlobalPerMinute != 5 {
		t.Errorf("models = %+v", cfg.Models)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"unknown driver", Config{Store: StoreConfig{Driver: "redis"}}, "store.driver"},
		{"file without dir", Config{Store: StoreConfig{Driver: DriverFile}}, "store.data_dir"},
		{
			"backup inside data",
			Config{Store: StoreConfig{Driver: DriverFile, DataDir: "/data"}, Backup: BackupConfig{Dir: "/data/backups"}},
			"backup.dir",
		},
		{"bad timezone", Config{Store: StoreConfig{Driver: DriverMemory}, Timezone: "Mars/Olympus"}, "timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			var ve bits.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("Validate() = %v, want field %s", err, tt.field)
			}
		})
	}

	ok := Config{Store: StoreConfig{Driver: DriverFile, DataDir: "/data"}, Backup: BackupConfig{Dir: "/data-backups"}}
	if err := ok.Validate(); err != nil {
		t.Errorf("sibling backup dir rejected: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bits.yaml")
	if err := os.WriteFile(path, []byte("store:\n  driver: nosuch\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); !bits.IsValidation(err) {
		t.Errorf("err = %v", err)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestOpenStore(t *testing.T) {
	s, err := OpenStore(StoreConfig{Driver: DriverMemory}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("memory driver = %T", s)
	}

	s, err = OpenStore(StoreConfig{Driver: DriverFile, DataDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*file.Store); !ok {
		t.Errorf("file driver = %T", s)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	if _, err := OpenStore(StoreConfig{Driver: DriverPostgres}, nil); err == nil {
		t.Error("postgres without grove database accepted")
	}
}

func TestMergeConfigurations(t *testing.T) {
	yamlCfg := Config{Store: StoreConfig{Driver: DriverFile, DataDir: "/from-yaml"}}
	prog := Config{
		DisableStart: true,
		Store:        StoreConfig{DataDir: "/from-code"},
		Backup:       BackupConfig{Dir: "/backups"},
	}
	got := mergeConfigurations(yamlCfg, prog)
	if !got.DisableStart || got.Store.DataDir != "/from-yaml" || got.Backup.Dir != "/backups" {
		t.Errorf("merged = %+v", got)
	}
	if got.ElectionTerm == 0 {
		t.Error("defaults not applied")
	}
}
