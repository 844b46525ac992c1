// Package backup writes rotating point-in-time snapshots of every stored
// resource and freezes evidence when the ledger is found inflated.
//
// Layout under the backup root:
//
//	20260102_150405/            one snapshot per run
//	    manifest.json
//	    balances.json
//	    notifications/alice.json
//	locked_20260102_150405/     frozen anomaly evidence, never rotated
//	    LOCKED
//	    current_balances.json
//	    last_backup/...
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xraph/bits/id"
	"github.com/xraph/bits/store"
)

// DirLayout names snapshot directories. It sorts chronologically.
const DirLayout = "20060102_150405"

// DefaultKeep is how many snapshots Rotate retains.
const DefaultKeep = 10

// LockedPrefix marks frozen anomaly directories.
const LockedPrefix = "locked_"

const (
	manifestFile = "manifest.json"
	markerFile   = "LOCKED"
	balancesFile = "current_balances.json"
	lastBackup   = "last_backup"
)

// ErrNoBackups is returned by Latest when no snapshot exists.
var ErrNoBackups = errors.New("backup: no snapshots")

// Manifest describes one snapshot.
type Manifest struct {
	ID        id.SnapshotID `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	Resources []string      `json:"resources"`
	Bytes     int64         `json:"bytes"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithKeep sets how many snapshots survive rotation.
func WithKeep(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.keep = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager owns a backup root directory.
type Manager struct {
	dir    string
	keep   int
	now    func() time.Time
	logger *slog.Logger
}

// New creates the backup root if needed.
func New(dir string, opts ...Option) (*Manager, error) {
	m := &Manager{
		dir:    dir,
		keep:   DefaultKeep,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create %s: %w", dir, err)
	}
	return m, nil
}

// Dir returns the backup root.
func (m *Manager) Dir() string { return m.dir }

// Snapshot copies every resource in s into a new timestamped directory.
// The directory is staged under a hidden name and renamed into place, so a
// listed snapshot is always complete.
func (m *Manager) Snapshot(ctx context.Context, s store.Store) (*Manifest, error) {
	names, err := s.Names(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("backup: list resources: %w", err)
	}

	now := m.now().UTC()
	name, err := m.freeName(now.Format(DirLayout))
	if err != nil {
		return nil, err
	}
	staging, err := os.MkdirTemp(m.dir, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("backup: stage: %w", err)
	}
	defer os.RemoveAll(staging)

	man := &Manifest{ID: id.NewSnapshotID(), Name: name, CreatedAt: now}
	for _, res := range names {
		raw, err := s.ReadRaw(ctx, res)
		if err != nil {
			return nil, fmt.Errorf("backup: read %s: %w", res, err)
		}
		if raw == nil {
			continue
		}
		if err := writeFile(filepath.Join(staging, filepath.FromSlash(res)+".json"), raw); err != nil {
			return nil, err
		}
		man.Resources = append(man.Resources, res)
		man.Bytes += int64(len(raw))
	}

	mb, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("backup: encode manifest: %w", err)
	}
	if err := writeFile(filepath.Join(staging, manifestFile), mb); err != nil {
		return nil, err
	}
	if err := os.Rename(staging, filepath.Join(m.dir, name)); err != nil {
		return nil, fmt.Errorf("backup: commit %s: %w", name, err)
	}

	m.logger.Info("backup completed", "snapshot", name, "resources", len(man.Resources), "bytes", man.Bytes)
	return man, nil
}

// freeName returns base, or base with a numeric suffix when a snapshot
// for the same second already exists.
func (m *Manager) freeName(base string) (string, error) {
	name := base
	for i := 1; ; i++ {
		_, err := os.Stat(filepath.Join(m.dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("backup: stat %s: %w", name, err)
		}
		name = fmt.Sprintf("%s_%02d", base, i)
	}
}

// List returns snapshot names, oldest first. Frozen and staging
// directories are excluded.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	var out []string
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() || strings.HasPrefix(n, ".") || strings.HasPrefix(n, LockedPrefix) {
			continue
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Latest returns the path of the newest snapshot.
func (m *Manager) Latest() (string, error) {
	names, err := m.List()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNoBackups
	}
	return filepath.Join(m.dir, names[len(names)-1]), nil
}

// Rotate deletes the oldest snapshots beyond the retention count and
// returns their names.
func (m *Manager) Rotate() ([]string, error) {
	names, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(names) <= m.keep {
		return nil, nil
	}
	expired := names[:len(names)-m.keep]
	var errs []error
	for _, n := range expired {
		if err := os.RemoveAll(filepath.Join(m.dir, n)); err != nil {
			m.logger.Warn("backup rotation failed", "snapshot", n, "error", err)
			errs = append(errs, err)
		}
	}
	return expired, errors.Join(errs...)
}

// Freeze writes anomaly evidence into a new locked directory: the current
// balances document, a copy of the latest snapshot (if any) and a marker
// file holding reason. Frozen directories are never rotated.
func (m *Manager) Freeze(balances []byte, reason string) (string, error) {
	name, err := m.freeName(LockedPrefix + m.now().UTC().Format(DirLayout))
	if err != nil {
		return "", err
	}
	dir := filepath.Join(m.dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("backup: freeze: %w", err)
	}

	if balances != nil {
		if err := writeFile(filepath.Join(dir, balancesFile), balances); err != nil {
			return dir, err
		}
	}
	latest, err := m.Latest()
	switch {
	case err == nil:
		if err := copyDir(latest, filepath.Join(dir, lastBackup)); err != nil {
			return dir, err
		}
	case !errors.Is(err, ErrNoBackups):
		return dir, err
	}
	if err := writeFile(filepath.Join(dir, markerFile), []byte(reason+"\n")); err != nil {
		return dir, err
	}

	m.logger.Error("ledger state frozen", "dir", dir, "reason", reason)
	return dir, nil
}

// Frozen lists locked evidence directories, oldest first.
func (m *Manager) Frozen() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), LockedPrefix) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadManifest loads the manifest of the named snapshot.
func (m *Manager) ReadManifest(name string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(m.dir, name, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("backup: manifest %s: %w", name, err)
	}
	var man Manifest
	if err := json.Unmarshal(raw, &man); err != nil {
		return nil, fmt.Errorf("backup: manifest %s: %w", name, err)
	}
	return &man, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("backup: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("backup: write %s: %w", path, err)
	}
	return nil
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return writeFile(target, data)
	})
}
