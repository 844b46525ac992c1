// Package memory provides an in-process store.Store, used in tests and by
// the Forge extension when no backend is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/bits/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store keeps every resource as a byte slice in a map.
type Store struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	locks  *store.Locker
	closed bool
}

// Option configures a memory store.
type Option func(*Store)

// WithLockTimeout sets the bounded wait for resource locks.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.locks = store.NewLocker(d) }
}

// New creates an empty memory store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:  make(map[string][]byte),
		locks: store.NewLocker(store.DefaultLockTimeout),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ReadRaw(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrStoreClosed
	}
	doc, ok := s.docs[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), doc...), nil
}

func (s *Store) UpdateRaw(ctx context.Context, name string, fn store.TransformFunc) error {
	if !store.ValidName(name) {
		return fmt.Errorf("%w: %q", store.ErrInvalidName, name)
	}

	unlock, err := s.locks.Lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

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

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	s.docs[name] = append([]byte(nil), next...)
	return nil
}

func (s *Store) Names(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
