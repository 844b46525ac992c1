package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/xraph/bits/store"
)

type balances map[string]int

var balancesRes = store.Define[balances](store.Balances, "balances", 1)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestReadMissing(t *testing.T) {
	s := newStore(t)
	raw, err := s.ReadRaw(context.Background(), store.Balances)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if raw != nil {
		t.Errorf("expected nil, got %q", raw)
	}
}

func TestUpdateWritesFile(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := store.Update(ctx, s, balancesRes, func(b *balances) error {
		*b = balances{"alice": 100}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.Root(), "balances.json")); err != nil {
		t.Fatalf("expected balances.json: %v", err)
	}

	got, err := store.Read(ctx, s, balancesRes)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["alice"] != 100 {
		t.Errorf("got %v", got)
	}

	// No staging files survive a completed write.
	matches, _ := filepath.Glob(filepath.Join(s.Root(), "*.tmp*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNestedNames(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, name := range []string{store.NotificationsFor("bob"), store.NotificationsFor("alice"), store.Balances} {
		if err := s.UpdateRaw(ctx, name, func([]byte) ([]byte, error) { return []byte("[]"), nil }); err != nil {
			t.Fatalf("update %s: %v", name, err)
		}
	}

	names, err := s.Names(ctx, store.Notifications)
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if len(names) != 2 || names[0] != "notifications/alice" || names[1] != "notifications/bob" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestInvalidName(t *testing.T) {
	s := newStore(t)
	err := s.UpdateRaw(context.Background(), "../escape", func([]byte) ([]byte, error) { return []byte("{}"), nil })
	if !errors.Is(err, store.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Update(ctx, s, balancesRes, func(b *balances) error {
				if *b == nil {
					*b = balances{}
				}
				(*b)["n"]++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := store.Read(ctx, s, balancesRes)
	if got["n"] != 20 {
		t.Errorf("lost updates: got %d, want 20", got["n"])
	}
}

func TestClosed(t *testing.T) {
	s := newStore(t)
	_ = s.Close()
	if _, err := s.ReadRaw(context.Background(), store.Balances); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
