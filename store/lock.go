package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultLockTimeout bounds how long UpdateRaw waits for a resource lock.
const DefaultLockTimeout = 10 * time.Second

// Locker hands out one in-process lock per resource name. Waiting is
// bounded by the configured timeout and by the caller's context.
type Locker struct {
	mu      sync.Mutex
	sems    map[string]chan struct{}
	timeout time.Duration
}

// NewLocker creates a Locker. A non-positive timeout uses DefaultLockTimeout.
func NewLocker(timeout time.Duration) *Locker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Locker{
		sems:    make(map[string]chan struct{}),
		timeout: timeout,
	}
}

// Timeout returns the wait bound.
func (l *Locker) Timeout() time.Duration { return l.timeout }

func (l *Locker) sem(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sems[name]
	if !ok {
		s = make(chan struct{}, 1)
		l.sems[name] = s
	}
	return s
}

// Lock acquires the lock for name. The returned func releases it.
func (l *Locker) Lock(ctx context.Context, name string) (func(), error) {
	s := l.sem(name)

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", ErrLockTimeout, name, l.timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, name, ctx.Err())
	}
}
