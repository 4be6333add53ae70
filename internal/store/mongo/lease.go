package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// leaseGuard matches jobID only while its lease is absent, null or earlier than now.
func leaseGuard(jobID string, now time.Time) bson.M {
	return bson.M{
		"_id": jobID,
		"$or": []bson.M{
			{"locked_until": bson.M{"$exists": false}},
			{"locked_until": nil},
			{"locked_until": bson.M{"$lt": bsonTime(now)}},
		},
	}
}

func (s *Store) TryAcquireLease(ctx context.Context, jobID string, now, until time.Time) (bool, error) {
	update := bson.M{"$set": bson.M{"locked_until": bsonTime(until)}}
	opts := options.FindOneAndUpdate().
		SetProjection(bson.M{"_id": 1}).
		SetReturnDocument(options.After)

	err := s.db.Collection(colJobs).FindOneAndUpdate(ctx, leaseGuard(jobID, now), update, opts).Err()
	if err != nil {
		if isNoDocuments(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to acquire lease on job %s", jobID)
	}
	return true, nil
}

func (s *Store) ClearLease(ctx context.Context, jobID string) error {
	_, err := s.db.Collection(colJobs).UpdateOne(ctx,
		bson.M{"_id": jobID},
		bson.M{"$unset": bson.M{"locked_until": ""}},
	)
	if err != nil {
		return errors.Wrapf(err, "failed to clear lease on job %s", jobID)
	}
	return nil
}

func (s *Store) ClearAllLeases(ctx context.Context) error {
	_, err := s.db.Collection(colJobs).UpdateMany(ctx,
		bson.M{"locked_until": bson.M{"$exists": true}},
		bson.M{"$unset": bson.M{"locked_until": ""}},
	)
	if err != nil {
		return errors.Wrap(err, "failed to clear leases")
	}
	return nil
}
