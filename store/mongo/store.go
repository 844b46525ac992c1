package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/bits/store"
)

// Collection name constants.
const colResources = "bits_resources"

// compile-time interface check
var _ store.Store = (*Store)(nil)

type resourceModel struct {
	grove.BaseModel `grove:"table:bits_resources"`

	Name      string    `grove:"name,pk"    bson:"_id"`
	Revision  int64     `grove:"revision"   bson:"revision"`
	Payload   string    `grove:"payload"    bson:"payload"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

// Store implements store.Store using MongoDB via Grove ORM. Each resource is
// one document keyed by name; writes are compare-and-swap on revision.
type Store struct {
	db    *grove.DB
	mdb   *mongodriver.MongoDB
	locks *store.Locker
	retry store.RetryPolicy
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:    db,
		mdb:   mongodriver.Unwrap(db),
		locks: store.NewLocker(store.DefaultLockTimeout),
		retry: store.DefaultRetryPolicy(),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for the resource collection.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.mdb.Collection(colResources).Indexes().CreateMany(ctx, migrationIndexes())
	if err != nil {
		return fmt.Errorf("bits/mongo: migrate %s indexes: %w", colResources, err)
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

func (s *Store) load(ctx context.Context, name string) (*resourceModel, error) {
	return store.Retry(ctx, s.retry, func() (*resourceModel, error) {
		var m resourceModel
		err := s.mdb.NewFind(&m).
			Filter(bson.M{"_id": name}).
			Scan(ctx)
		if err != nil {
			if isNoDocuments(err) {
				return nil, nil
			}
			return nil, err
		}
		return &m, nil
	})
}

func (s *Store) ReadRaw(ctx context.Context, name string) ([]byte, error) {
	m, err := s.load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("bits/mongo: read %s: %w", name, err)
	}
	if m == nil {
		return nil, nil
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
		return fmt.Errorf("bits/mongo: read %s: %w", name, err)
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

	t := time.Now().UTC()
	if m == nil {
		_, err = s.mdb.NewInsert(&resourceModel{
			Name:      name,
			Revision:  1,
			Payload:   string(next),
			UpdatedAt: t,
		}).Exec(ctx)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s created concurrently", store.ErrConflict, name)
			}
			return fmt.Errorf("bits/mongo: insert %s: %w", name, err)
		}
		return nil
	}

	res, err := s.mdb.NewUpdate((*resourceModel)(nil)).
		Filter(bson.M{"_id": name, "revision": m.Revision}).
		Set("payload", string(next)).
		Set("revision", m.Revision+1).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bits/mongo: update %s: %w", name, err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("%w: %s revision %d", store.ErrConflict, name, m.Revision)
	}
	return nil
}

func (s *Store) Names(ctx context.Context, prefix string) ([]string, error) {
	var models []resourceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bits/mongo: list %q: %w", prefix, err)
	}
	names := make([]string, len(models))
	for i := range models {
		names[i] = models[i].Name
	}
	return names, nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for the resource collection.
func migrationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "_id", Value: 1}, {Key: "revision", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
}
