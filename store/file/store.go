// Package file implements store.Store on a directory tree, one JSON file per
// resource. Writers hold an in-process lock plus an advisory file lock so
// several processes can share the directory. Every write goes to a temp
// file that is synced and renamed over the target.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/xraph/bits/store"
)

const (
	ext       = ".json"
	lockExt   = ".lock"
	lockRetry = 25 * time.Millisecond
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store is a directory-backed store.
type Store struct {
	root   string
	locks  *store.Locker
	retry  store.RetryPolicy
	closed atomic.Bool
}

// Option configures a file store.
type Option func(*Store)

// WithLockTimeout sets the bounded wait for resource locks.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.locks = store.NewLocker(d) }
}

// WithRetryPolicy sets the retry bounds for file I/O.
func WithRetryPolicy(p store.RetryPolicy) Option {
	return func(s *Store) { s.retry = p }
}

// New opens (creating if needed) a store rooted at dir.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bits/file: create %s: %w", dir, err)
	}
	s := &Store{
		root:  dir,
		locks: store.NewLocker(store.DefaultLockTimeout),
		retry: store.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

func (s *Store) path(name string) (string, error) {
	if !store.ValidName(name) {
		return "", fmt.Errorf("%w: %q", store.ErrInvalidName, name)
	}
	return filepath.Join(s.root, filepath.FromSlash(name)+ext), nil
}

func (s *Store) ReadRaw(ctx context.Context, name string) ([]byte, error) {
	if s.closed.Load() {
		return nil, store.ErrStoreClosed
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	return store.Retry(ctx, s.retry, func() ([]byte, error) {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return data, err
	})
}

func (s *Store) UpdateRaw(ctx context.Context, name string, fn store.TransformFunc) error {
	if s.closed.Load() {
		return store.ErrStoreClosed
	}
	p, err := s.path(name)
	if err != nil {
		return err
	}

	unlock, err := s.locks.Lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("bits/file: create dir for %s: %w", name, err)
	}

	fl := flock.New(p + lockExt)
	lockCtx, cancel := context.WithTimeout(ctx, s.locks.Timeout())
	defer cancel()
	ok, err := fl.TryLockContext(lockCtx, lockRetry)
	if !ok || err != nil {
		return fmt.Errorf("%w: %s: file lock: %v", store.ErrLockTimeout, name, err)
	}
	defer fl.Unlock() //nolint:errcheck // unlock failure leaves a stale advisory lock only

	current, err := s.ReadRaw(ctx, name)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	_, err = store.Retry(ctx, s.retry, func() (struct{}, error) {
		return struct{}{}, writeAtomic(p, next)
	})
	return err
}

// writeAtomic stages data in a sibling temp file, syncs it and renames it
// over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *Store) Names(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ext) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.ToSlash(rel), ext)
		if store.ValidName(name) && strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bits/file: list %q: %w", prefix, err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	if s.closed.Load() {
		return store.ErrStoreClosed
	}
	_, err := os.Stat(s.root)
	return err
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}
