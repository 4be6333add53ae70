package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RezaEskandarii/cronhook/custom_errors"
	"github.com/RezaEskandarii/cronhook/internal/lock"
	"github.com/RezaEskandarii/cronhook/internal/logger"
	"github.com/RezaEskandarii/cronhook/internal/parser"
	"github.com/RezaEskandarii/cronhook/internal/store"
	"github.com/RezaEskandarii/cronhook/types"
)

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Scheduler is the part of the scheduler registry the job service drives.
type Scheduler interface {
	Install(job types.Job) error
	Remove(jobID string)
	Len() int
	Has(jobID string) bool
}

// JobInput carries the user-editable fields of a job. Nil fields keep their
// current value on update and take their default on create.
type JobInput struct {
	Name     *string `json:"name,omitempty"`
	URI      *string `json:"uri,omitempty"`
	Method   *string `json:"httpMethod,omitempty"`
	Body     *string `json:"body,omitempty"`
	Schedule *string `json:"schedule,omitempty"`
	TimeZone *string `json:"timeZone,omitempty"`
	Enabled  *bool   `json:"enabled,omitempty"`
}

// JobService manages job definitions and keeps this instance's timers in
// step with them.
type JobService struct {
	store     store.Store
	scheduler Scheduler
	locks     lock.DistributedLockManager
	// jobs serializes management operations on one job id.
	jobs   *keyedMutex
	logger *zap.Logger
}

func NewJobService(s store.Store, scheduler Scheduler, locks lock.DistributedLockManager, log *zap.Logger) *JobService {
	return &JobService{
		store:     s,
		scheduler: scheduler,
		locks:     locks,
		jobs:      newKeyedMutex(),
		logger:    log.Named("jobs"),
	}
}

func (s *JobService) Create(ctx context.Context, in JobInput) (*types.Job, error) {
	job := &types.Job{
		ID:       uuid.NewString(),
		Method:   http.MethodGet,
		TimeZone: "UTC",
		Enabled:  true,
	}
	in.apply(job)
	if err := validateJob(job); err != nil {
		return nil, err
	}

	unlock := s.jobs.Lock(job.ID)
	defer unlock()
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.OnJobCreated(*job)
	return job, nil
}

func (s *JobService) Update(ctx context.Context, jobID string, in JobInput) (*types.Job, error) {
	unlock := s.jobs.Lock(jobID)
	defer unlock()

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	in.apply(job)
	if err := validateJob(job); err != nil {
		return nil, err
	}
	s.OnJobUpdated(ctx, jobID)
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	s.install(*job)
	return job, nil
}

func (s *JobService) Delete(ctx context.Context, jobID string) error {
	unlock := s.jobs.Lock(jobID)
	defer unlock()

	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return err
	}
	s.OnJobDeleted(ctx, jobID)
	return s.store.DeleteJob(ctx, jobID)
}

func (s *JobService) Get(ctx context.Context, jobID string) (*types.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

func (s *JobService) List(ctx context.Context, page, pageSize int) (*types.PaginationResult[types.Job], error) {
	return s.store.ListJobs(ctx, page, pageSize)
}

// Runs lists a job's runs, newest first. Runs outlive their job.
func (s *JobService) Runs(ctx context.Context, jobID string, page, pageSize int) (*types.PaginationResult[types.Run], error) {
	return s.store.ListRuns(ctx, jobID, page, pageSize)
}

// ActiveTimers is the number of jobs scheduled on this instance.
func (s *JobService) ActiveTimers() int {
	return s.scheduler.Len()
}

// OnJobCreated installs the timer of a newly stored job.
func (s *JobService) OnJobCreated(job types.Job) {
	s.install(job)
}

// OnJobUpdated stops the job's timer and frees its lease before the new
// definition is stored.
func (s *JobService) OnJobUpdated(ctx context.Context, jobID string) {
	s.scheduler.Remove(jobID)
	s.locks.Release(ctx, jobID)
}

// OnJobDeleted stops the job's timer and frees its lease.
func (s *JobService) OnJobDeleted(ctx context.Context, jobID string) {
	s.scheduler.Remove(jobID)
	s.locks.Release(ctx, jobID)
}

func (s *JobService) install(job types.Job) {
	if err := s.scheduler.Install(job); err != nil {
		s.logger.Error("job stored but not scheduled",
			zap.String(logger.FieldJobID, job.ID),
			zap.Error(err),
		)
	}
}

func (in JobInput) apply(job *types.Job) {
	if in.Name != nil {
		job.Name = strings.TrimSpace(*in.Name)
	}
	if in.URI != nil {
		job.URI = strings.TrimSpace(*in.URI)
	}
	if in.Method != nil {
		job.Method = strings.ToUpper(strings.TrimSpace(*in.Method))
	}
	if in.Body != nil {
		job.Body = *in.Body
	}
	if in.Schedule != nil {
		job.Schedule = strings.TrimSpace(*in.Schedule)
	}
	if in.TimeZone != nil {
		job.TimeZone = strings.TrimSpace(*in.TimeZone)
		if job.TimeZone == "" {
			job.TimeZone = "UTC"
		}
	}
	if in.Enabled != nil {
		job.Enabled = *in.Enabled
	}
}

// validateJob checks what is needed to schedule and dispatch job safely.
func validateJob(job *types.Job) error {
	v := &custom_errors.ValidationError{}

	if job.URI == "" {
		v.Add(errors.New("uri is required"))
	} else if u, err := url.Parse(job.URI); err != nil || !u.IsAbs() || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		v.Addf("uri %q must be an absolute http or https URL", job.URI)
	}
	if !allowedMethods[job.Method] {
		v.Addf("unsupported http method %q", job.Method)
	}
	if job.Schedule == "" {
		v.Add(errors.New("schedule is required"))
	} else if err := parser.Validate(job.Schedule, job.TimeZone); err != nil {
		v.Add(err)
	}
	if job.Body != "" && !json.Valid([]byte(job.Body)) {
		v.Add(errors.New("body must be valid JSON"))
	}

	if v.HasError() {
		return v
	}
	return nil
}
