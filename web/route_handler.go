// Package web serves the JSON API used to manage jobs and read their runs.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/RezaEskandarii/cronhook/app"
	"github.com/RezaEskandarii/cronhook/custom_errors"
	"github.com/RezaEskandarii/cronhook/internal/store"
	"github.com/RezaEskandarii/cronhook/types"
)

const maxRequestBytes = 1 << 20

// JobAPI is the job management surface exposed over HTTP.
type JobAPI interface {
	Create(ctx context.Context, in app.JobInput) (*types.Job, error)
	Update(ctx context.Context, jobID string, in app.JobInput) (*types.Job, error)
	Delete(ctx context.Context, jobID string) error
	Get(ctx context.Context, jobID string) (*types.Job, error)
	List(ctx context.Context, page, pageSize int) (*types.PaginationResult[types.Job], error)
	Runs(ctx context.Context, jobID string, page, pageSize int) (*types.PaginationResult[types.Run], error)
	ActiveTimers() int
}

type HttpRouteHandler struct {
	jobs     JobAPI
	instance string
	logger   *zap.Logger
}

func NewRouteHandler(jobs JobAPI, instance string, log *zap.Logger) *HttpRouteHandler {
	return &HttpRouteHandler{
		jobs:     jobs,
		instance: instance,
		logger:   log.Named("http"),
	}
}

// Handler returns the API routes.
func (h *HttpRouteHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /crons", h.createJob)
	mux.HandleFunc("GET /crons", h.listJobs)
	mux.HandleFunc("GET /crons/{id}", h.getJob)
	mux.HandleFunc("PUT /crons/{id}", h.updateJob)
	mux.HandleFunc("DELETE /crons/{id}", h.deleteJob)
	mux.HandleFunc("GET /crons/{id}/runs", h.listRuns)
	mux.HandleFunc("GET /healthz", h.health)
	return loggingMiddleware(h.logger, mux)
}

// NewServer returns an http.Server for handler on port.
func NewServer(port uint, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func (h *HttpRouteHandler) createJob(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *HttpRouteHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.List(r.Context(), getPageNumber(r), getPageSize(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *HttpRouteHandler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *HttpRouteHandler) updateJob(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *HttpRouteHandler) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HttpRouteHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.jobs.Runs(r.Context(), r.PathValue("id"), getPageNumber(r), getPageSize(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *HttpRouteHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"instance":     h.instance,
		"activeTimers": h.jobs.ActiveTimers(),
	})
}

func (h *HttpRouteHandler) decodeInput(w http.ResponseWriter, r *http.Request) (app.JobInput, bool) {
	var in app.JobInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return in, false
	}
	return in, true
}

func (h *HttpRouteHandler) writeServiceError(w http.ResponseWriter, err error) {
	var validation *custom_errors.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation failed", validation.Messages()...)
	case errors.Is(err, store.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "cron job not found")
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
