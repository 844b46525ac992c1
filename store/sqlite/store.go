package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bits/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM. Each resource
// is one row of bits_resources; writes are compare-and-swap on revision.
type Store struct {
	db    *grove.DB
	sdb   *sqlitedriver.SqliteDB
	locks *store.Locker
	retry store.RetryPolicy
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:    db,
		sdb:   sqlitedriver.Unwrap(db),
		locks: store.NewLocker(store.DefaultLockTimeout),
		retry: store.DefaultRetryPolicy(),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("bits/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bits/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Resources ====================

func (s *Store) load(ctx context.Context, name string) (*resourceModel, error) {
	return store.Retry(ctx, s.retry, func() (*resourceModel, error) {
		m := new(resourceModel)
		err := s.sdb.NewSelect(m).
			Where("name = ?", name).
			Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return nil, nil
			}
			return nil, err
		}
		return m, nil
	})
}

func (s *Store) ReadRaw(ctx context.Context, name string) ([]byte, error) {
	m, err := s.load(ctx, name)
	if err != nil || m == nil {
		return nil, err
	}
	return []byte(m.Payload), nil
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

	m, err := s.load(ctx, name)
	if err != nil {
		return err
	}

	var current []byte
	if m != nil {
		current = []byte(m.Payload)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	t := now()
	if m == nil {
		_, err = s.sdb.NewInsert(&resourceModel{
			Name:      name,
			Revision:  1,
			Payload:   string(next),
			UpdatedAt: t,
		}).Exec(ctx)
		if err != nil {
			return fmt.Errorf("%w: insert %s: %v", store.ErrConflict, name, err)
		}
		return nil
	}

	res, err := s.sdb.NewUpdate((*resourceModel)(nil)).
		Set("payload = ?", string(next)).
		Set("revision = ?", m.Revision+1).
		Set("updated_at = ?", t).
		Where("name = ?", name).
		Where("revision = ?", m.Revision).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bits/sqlite: update %s: %w", name, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s revision %d", store.ErrConflict, name, m.Revision)
	}
	return nil
}

func (s *Store) Names(ctx context.Context, prefix string) ([]string, error) {
	var models []resourceModel
	err := s.sdb.NewSelect(&models).
		Where(`name LIKE ? ESCAPE '\'`, store.LikePrefix(prefix)).
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bits/sqlite: list %q: %w", prefix, err)
	}
	names := make([]string, len(models))
	for i := range models {
		names[i] = models[i].Name
	}
	return names, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
