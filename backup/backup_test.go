package backup_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/bits/backup"
	"github.com/xraph/bits/store"
	"github.com/xraph/bits/store/memory"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func put(t *testing.T, s store.Store, name, body string) {
	t.Helper()
	err := s.UpdateRaw(context.Background(), name, func([]byte) ([]byte, error) {
		return []byte(body), nil
	})
	if err != nil {
		t.Fatalf("put %s: %v", name, err)
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	put(t, s, store.Balances, `{"alice":70.0}`)
	put(t, s, store.NotificationsFor("alice"), `[]`)

	c := &clock{t: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)}
	m, err := backup.New(t.TempDir(), backup.WithClock(c.now))
	if err != nil {
		t.Fatal(err)
	}

	man, err := m.Snapshot(ctx, s)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if man.Name != "20260203_040506" || len(man.Resources) != 2 || man.ID.IsNil() {
		t.Errorf("manifest = %+v", man)
	}

	got, err := os.ReadFile(filepath.Join(m.Dir(), man.Name, "notifications", "alice.json"))
	if err != nil || string(got) != "[]" {
		t.Errorf("nested resource = %q, %v", got, err)
	}

	// Same second: suffixed, still sorted after the first.
	second, err := m.Snapshot(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if second.Name != "20260203_040506_01" {
		t.Errorf("second name = %q", second.Name)
	}
	latest, _ := m.Latest()
	if filepath.Base(latest) != second.Name {
		t.Errorf("Latest = %q", latest)
	}

	read, err := m.ReadManifest(man.Name)
	if err != nil || read.ID.String() != man.ID.String() {
		t.Errorf("ReadManifest = %+v, %v", read, err)
	}

	entries, _ := os.ReadDir(m.Dir())
	for _, e := range entries {
		if e.Name()[0] == '.' {
			t.Errorf("staging dir left behind: %s", e.Name())
		}
	}
}

func TestRotateKeepsNewest(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	put(t, s, store.Balances, `{}`)

	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m, err := backup.New(t.TempDir(), backup.WithClock(c.now), backup.WithKeep(3))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Freeze([]byte(`{}`), "test"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		c.t = c.t.Add(10 * time.Minute)
		if _, err := m.Snapshot(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := m.Rotate()
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if len(removed) != 2 || removed[0] != "20260101_001000" {
		t.Errorf("removed = %v", removed)
	}
	names, _ := m.List()
	if len(names) != 3 || names[0] != "20260101_003000" {
		t.Errorf("remaining = %v", names)
	}
	if frozen, _ := m.Frozen(); len(frozen) != 1 {
		t.Errorf("frozen dirs must survive rotation: %v", frozen)
	}
}

func TestFreeze(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	put(t, s, store.Balances, `{"alice":100.0}`)

	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m, err := backup.New(t.TempDir(), backup.WithClock(c.now))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Latest(); !errors.Is(err, backup.ErrNoBackups) {
		t.Fatalf("Latest on empty root = %v", err)
	}
	if _, err := m.Snapshot(ctx, s); err != nil {
		t.Fatal(err)
	}

	c.t = c.t.Add(time.Minute)
	dir, err := m.Freeze([]byte(`{"alice":500.0}`), "stored total exceeds log")
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if filepath.Base(dir) != "locked_20260301_120100" {
		t.Errorf("dir = %q", dir)
	}

	for _, f := range []string{
		"LOCKED",
		"current_balances.json",
		filepath.Join("last_backup", "balances.json"),
		filepath.Join("last_backup", "manifest.json"),
	} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("missing %s: %v", f, err)
		}
	}

	names, _ := m.List()
	if len(names) != 1 {
		t.Errorf("locked dir must not be listed as a snapshot: %v", names)
	}
}
