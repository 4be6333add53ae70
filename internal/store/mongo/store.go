// Package mongo implements store.Store on MongoDB. The lease is a single
// FindOneAndUpdate whose filter carries the "absent, null or expired" guard.
package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/RezaEskandarii/cronhook/internal/store"
)

const (
	colJobs = "cronhook_jobs"
	colRuns = "cronhook_runs"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	client *mongod.Client
	db     *mongod.Database
	now    func() time.Time
}

// Connect dials uri, verifies the connection and ensures the indexes exist.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" || database == "" {
		return nil, errors.New("mongo uri and database are required")
	}
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "unable to reach mongo")
	}

	s := New(client, database)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func New(client *mongod.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the indexes used by the listing queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for col, models := range indexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "unable to create indexes on %s", col)
		}
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func indexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colJobs: {
			{Keys: bson.D{{Key: "enabled", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colRuns: {
			{Keys: bson.D{{Key: "cron_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// bsonTime drops precision Mongo cannot store so values read back compare equal.
func bsonTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
