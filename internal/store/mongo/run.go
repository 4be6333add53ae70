package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/RezaEskandarii/cronhook/internal/state"
	"github.com/RezaEskandarii/cronhook/internal/store"
	"github.com/RezaEskandarii/cronhook/types"
)

func errUnknownStatus(s string) error {
	return errors.Newf("unknown run status %q", s)
}

func (s *Store) CreateRun(ctx context.Context, run *types.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := bsonTime(s.now())
	run.CreatedAt = now
	run.UpdatedAt = now

	if _, err := s.db.Collection(colRuns).InsertOne(ctx, toRunModel(run)); err != nil {
		return errors.Wrap(err, "failed to insert run")
	}
	return nil
}

func (s *Store) UpdateRun(ctx context.Context, run *types.Run, expected state.RunStatus) error {
	run.UpdatedAt = bsonTime(s.now())
	col := s.db.Collection(colRuns)

	res, err := col.UpdateOne(ctx, runGuard(run.ID, expected), runUpdate(run))
	if err != nil {
		return errors.Wrapf(err, "failed to update run %s", run.ID)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	count, err := col.CountDocuments(ctx, bson.M{"_id": run.ID})
	if err != nil {
		return errors.Wrapf(err, "failed to check run %s", run.ID)
	}
	if count == 0 {
		return store.ErrRunNotFound
	}
	return store.ErrStaleRun
}

func runGuard(runID string, expected state.RunStatus) bson.M {
	return bson.M{"_id": runID, "status": expected.String()}
}

func runUpdate(run *types.Run) bson.M {
	m := toRunModel(run)
	set := bson.M{
		"status":     m.Status,
		"attempts":   m.Attempts,
		"updated_at": m.UpdatedAt,
	}
	unset := bson.M{}
	if m.ExecutedAt != nil {
		set["executed_at"] = *m.ExecutedAt
	} else {
		unset["executed_at"] = ""
	}
	if m.ResponseStatus != nil {
		set["response_status"] = *m.ResponseStatus
	} else {
		unset["response_status"] = ""
	}
	if m.ResponseBody != "" {
		set["response_body"] = m.ResponseBody
	} else {
		unset["response_body"] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func (s *Store) GetRun(ctx context.Context, runID string) (*types.Run, error) {
	var m runModel
	err := s.db.Collection(colRuns).FindOne(ctx, bson.M{"_id": runID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrRunNotFound
		}
		return nil, errors.Wrapf(err, "failed to get run %s", runID)
	}
	return fromRunModel(&m)
}

func (s *Store) ListRuns(ctx context.Context, jobID string, page, pageSize int) (*types.PaginationResult[types.Run], error) {
	page, pageSize, offset := types.NormalizePage(page, pageSize, store.MaxPageSize)
	col := s.db.Collection(colRuns)
	filter := bson.M{"cron_id": jobID}

	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count runs")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(pageSize))
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer cursor.Close(ctx)

	var models []runModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, errors.Wrap(err, "failed to decode runs")
	}
	runs := make([]types.Run, 0, len(models))
	for i := range models {
		r, err := fromRunModel(&models[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return types.NewPaginationResult(runs, int(total), page, pageSize), nil
}
