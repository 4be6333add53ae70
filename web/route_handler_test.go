package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RezaEskandarii/cronhook/app"
	"github.com/RezaEskandarii/cronhook/internal/lock"
	"github.com/RezaEskandarii/cronhook/internal/scheduler"
	"github.com/RezaEskandarii/cronhook/internal/state"
	"github.com/RezaEskandarii/cronhook/internal/store/memory"
	"github.com/RezaEskandarii/cronhook/types"
)

type apiFixture struct {
	store  *memory.Store
	server *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	s := memory.New()
	registry := scheduler.NewRegistry(func(context.Context, types.Job, time.Time) {}, zap.NewNop())
	locks := lock.NewLeaseLockManager(s, zap.NewNop(), lock.WithMaxRetries(1))
	jobs := app.NewJobService(s, registry, locks, zap.NewNop())

	srv := httptest.NewServer(NewRouteHandler(jobs, "node-a", zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return &apiFixture{store: s, server: srv}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (f *apiFixture) create(t *testing.T) string {
	t.Helper()
	resp, out := f.do(t, http.MethodPost, "/crons", `{"uri":"https://example.com/hook","schedule":"*/10 * * * *"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return out["id"].(string)
}

func TestAPI_CreateAndGet(t *testing.T) {
	f := newAPIFixture(t)

	resp, out := f.do(t, http.MethodPost, "/crons",
		`{"name":"nightly","uri":"https://example.com/hook","httpMethod":"post","body":"{\"a\":1}","schedule":"0 2 * * *","timeZone":"Europe/Paris"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "POST", out["httpMethod"])
	assert.Equal(t, "Europe/Paris", out["timeZone"])
	assert.Equal(t, true, out["enabled"])

	id := out["id"].(string)
	resp, out = f.do(t, http.MethodGet, "/crons/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nightly", out["name"])
}

func TestAPI_CreateValidationError(t *testing.T) {
	f := newAPIFixture(t)

	resp, out := f.do(t, http.MethodPost, "/crons", `{"uri":"not a url","schedule":"bogus"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation failed", out["error"])
	assert.Len(t, out["details"], 2)
}

func TestAPI_CreateMalformedBody(t *testing.T) {
	f := newAPIFixture(t)

	for _, body := range []string{`{"uri":`, `{"unknown":true}`} {
		resp, out := f.do(t, http.MethodPost, "/crons", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Contains(t, out["error"], "invalid request body")
	}
}

func TestAPI_List(t *testing.T) {
	f := newAPIFixture(t)
	for i := 0; i < 3; i++ {
		f.create(t)
	}

	resp, out := f.do(t, http.MethodGet, "/crons?page=2&pageSize=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, out["total_items"])
	assert.EqualValues(t, 2, out["page"])
	assert.Len(t, out["items"], 1)

	resp, out = f.do(t, http.MethodGet, "/crons?page=-4&pageSize=abc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, out["page"])
	assert.Len(t, out["items"], 3)
}

func TestAPI_Update(t *testing.T) {
	f := newAPIFixture(t)
	id := f.create(t)

	resp, out := f.do(t, http.MethodPut, "/crons/"+id, `{"schedule":"0 * * * *","enabled":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0 * * * *", out["schedule"])
	assert.Equal(t, false, out["enabled"])
	assert.Equal(t, "https://example.com/hook", out["uri"])

	resp, _ = f.do(t, http.MethodPut, "/crons/missing", `{"enabled":false}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Delete(t *testing.T) {
	f := newAPIFixture(t)
	id := f.create(t)

	resp, _ := f.do(t, http.MethodDelete, "/crons/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, out := f.do(t, http.MethodDelete, "/crons/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "cron job not found", out["error"])

	resp, _ = f.do(t, http.MethodGet, "/crons/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Runs(t *testing.T) {
	f := newAPIFixture(t)
	id := f.create(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		run := &types.Run{JobID: id, Status: state.StatusPending, ScheduledFor: time.Now().UTC()}
		require.NoError(t, f.store.CreateRun(ctx, run))
	}

	resp, out := f.do(t, http.MethodGet, "/crons/"+id+"/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, out["total_items"])
	items := out["items"].([]any)
	assert.Equal(t, id, items[0].(map[string]any)["cronId"])
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)
	f.create(t)

	resp, out := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "node-a", out["instance"])
	assert.EqualValues(t, 1, out["activeTimers"])
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t)

	req, err := http.NewRequest(http.MethodPatch, f.server.URL+"/crons", nil)
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

type failingAPI struct {
	*app.JobService
}

func (failingAPI) Get(context.Context, string) (*types.Job, error) {
	panic("boom")
}

func (failingAPI) List(context.Context, int, int) (*types.PaginationResult[types.Job], error) {
	return nil, assert.AnError
}

func TestAPI_InternalErrors(t *testing.T) {
	srv := httptest.NewServer(NewRouteHandler(failingAPI{}, "node-a", zap.NewNop()).Handler())
	defer srv.Close()

	for _, path := range []string{"/crons", "/crons/x"} {
		resp, err := srv.Client().Get(srv.URL + path)
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		resp.Body.Close()

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, path)
		assert.Equal(t, "internal error", out["error"])
	}
}
