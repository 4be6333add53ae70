package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/RezaEskandarii/cronhook/internal/store"
	"github.com/RezaEskandarii/cronhook/types"
)

func (s *Store) CreateJob(ctx context.Context, job *types.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := bsonTime(s.now())
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if _, err := s.db.Collection(colJobs).InsertOne(ctx, toJobModel(job)); err != nil {
		return errors.Wrap(err, "failed to insert job")
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrJobNotFound
		}
		return nil, errors.Wrapf(err, "failed to get job %s", jobID)
	}
	return fromJobModel(&m), nil
}

func (s *Store) UpdateJob(ctx context.Context, job *types.Job) error {
	job.UpdatedAt = bsonTime(s.now())
	res, err := s.db.Collection(colJobs).UpdateOne(ctx, bson.M{"_id": job.ID}, jobUpdate(job))
	if err != nil {
		return errors.Wrapf(err, "failed to update job %s", job.ID)
	}
	if res.MatchedCount == 0 {
		return store.ErrJobNotFound
	}
	return nil
}

// jobUpdate sets every user-editable field and leaves locked_until alone.
func jobUpdate(job *types.Job) bson.M {
	return bson.M{
		"$set": bson.M{
			"name":        job.Name,
			"uri":         job.URI,
			"http_method": job.Method,
			"body":        job.Body,
			"schedule":    job.Schedule,
			"time_zone":   job.TimeZone,
			"enabled":     job.Enabled,
			"updated_at":  job.UpdatedAt,
		},
	}
}

func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	res, err := s.db.Collection(colJobs).DeleteOne(ctx, bson.M{"_id": jobID})
	if err != nil {
		return errors.Wrapf(err, "failed to delete job %s", jobID)
	}
	if res.DeletedCount == 0 {
		return store.ErrJobNotFound
	}
	return nil
}

func (s *Store) ListJobs(ctx context.Context, page, pageSize int) (*types.PaginationResult[types.Job], error) {
	page, pageSize, offset := types.NormalizePage(page, pageSize, store.MaxPageSize)
	col := s.db.Collection(colJobs)

	total, err := col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(pageSize))
	jobs, err := s.findJobs(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	return types.NewPaginationResult(jobs, int(total), page, pageSize), nil
}

func (s *Store) ListEnabledJobs(ctx context.Context) ([]types.Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return s.findJobs(ctx, bson.M{"enabled": true}, opts)
}

func (s *Store) findJobs(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]types.Job, error) {
	cursor, err := s.db.Collection(colJobs).Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer cursor.Close(ctx)

	var models []jobModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, errors.Wrap(err, "failed to decode jobs")
	}
	jobs := make([]types.Job, 0, len(models))
	for i := range models {
		jobs = append(jobs, *fromJobModel(&models[i]))
	}
	return jobs, nil
}
