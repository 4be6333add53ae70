package mongo

import (
	"time"

	"github.com/RezaEskandarii/cronhook/internal/state"
	"github.com/RezaEskandarii/cronhook/types"
)

type jobModel struct {
	ID          string     `bson:"_id"`
	Name        string     `bson:"name"`
	URI         string     `bson:"uri"`
	Method      string     `bson:"http_method"`
	Body        string     `bson:"body,omitempty"`
	Schedule    string     `bson:"schedule"`
	TimeZone    string     `bson:"time_zone"`
	Enabled     bool       `bson:"enabled"`
	LockedUntil *time.Time `bson:"locked_until,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

type runModel struct {
	ID             string     `bson:"_id"`
	JobID          string     `bson:"cron_id"`
	ScheduledFor   time.Time  `bson:"scheduled_for"`
	ExecutedAt     *time.Time `bson:"executed_at,omitempty"`
	Status         string     `bson:"status"`
	ResponseStatus *int       `bson:"response_status,omitempty"`
	ResponseBody   string     `bson:"response_body,omitempty"`
	Attempts       int        `bson:"attempts"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toJobModel(j *types.Job) *jobModel {
	m := &jobModel{
		ID:        j.ID,
		Name:      j.Name,
		URI:       j.URI,
		Method:    j.Method,
		Body:      j.Body,
		Schedule:  j.Schedule,
		TimeZone:  j.TimeZone,
		Enabled:   j.Enabled,
		CreatedAt: bsonTime(j.CreatedAt),
		UpdatedAt: bsonTime(j.UpdatedAt),
	}
	if j.LeaseExpiresAt != nil {
		t := bsonTime(*j.LeaseExpiresAt)
		m.LockedUntil = &t
	}
	return m
}

func fromJobModel(m *jobModel) *types.Job {
	j := &types.Job{
		ID:        m.ID,
		Name:      m.Name,
		URI:       m.URI,
		Method:    m.Method,
		Body:      m.Body,
		Schedule:  m.Schedule,
		TimeZone:  m.TimeZone,
		Enabled:   m.Enabled,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if m.LockedUntil != nil {
		t := m.LockedUntil.UTC()
		j.LeaseExpiresAt = &t
	}
	return j
}

func toRunModel(r *types.Run) *runModel {
	m := &runModel{
		ID:             r.ID,
		JobID:          r.JobID,
		ScheduledFor:   bsonTime(r.ScheduledFor),
		Status:         r.Status.String(),
		ResponseStatus: r.ResponseStatus,
		ResponseBody:   r.ResponseBody,
		Attempts:       r.Attempts,
		CreatedAt:      bsonTime(r.CreatedAt),
		UpdatedAt:      bsonTime(r.UpdatedAt),
	}
	if r.ExecutedAt != nil {
		t := bsonTime(*r.ExecutedAt)
		m.ExecutedAt = &t
	}
	return m
}

func fromRunModel(m *runModel) (*types.Run, error) {
	status, ok := state.Parse(m.Status)
	if !ok {
		return nil, errUnknownStatus(m.Status)
	}
	r := &types.Run{
		ID:             m.ID,
		JobID:          m.JobID,
		ScheduledFor:   m.ScheduledFor.UTC(),
		Status:         status,
		ResponseStatus: m.ResponseStatus,
		ResponseBody:   m.ResponseBody,
		Attempts:       m.Attempts,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
	if m.ExecutedAt != nil {
		t := m.ExecutedAt.UTC()
		r.ExecutedAt = &t
	}
	return r, nil
}
