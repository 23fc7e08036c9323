package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/csvflow/csvflow/internal/auth"
	"github.com/csvflow/csvflow/internal/core"
	"github.com/csvflow/csvflow/internal/enrich"
	"github.com/csvflow/csvflow/internal/importsvc"
	"github.com/csvflow/csvflow/internal/server"
	"github.com/csvflow/csvflow/internal/storage"
	"github.com/csvflow/csvflow/mocks"
)

const (
	testSecret = "shared-secret"
	testToken  = "user-1:shared-secret"
)

type stubSuggester struct {
	resp enrich.SuggestResponse
	err  error
}

func (s *stubSuggester) SuggestFixes(context.Context, enrich.SuggestRequest) (enrich.SuggestResponse, error) {
	return s.resp, s.err
}

type routerDeps struct {
	jobs      *mocks.MockJobStore
	importers *mocks.MockImporterStore
	dispatch  *mocks.MockDispatcher
	notifier  *mocks.MockNotifier
	suggester *stubSuggester
}

func newTestRouter(t *testing.T) (http.Handler, routerDeps) {
	t.Helper()

	ctrl := gomock.NewController(t)
	deps := routerDeps{
		jobs:      mocks.NewMockJobStore(ctrl),
		importers: mocks.NewMockImporterStore(ctrl),
		dispatch:  mocks.NewMockDispatcher(ctrl),
		notifier:  mocks.NewMockNotifier(ctrl),
		suggester: &stubSuggester{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := importsvc.NewService(deps.jobs, deps.importers, deps.dispatch, deps.notifier, logger)
	router := server.NewRouter(svc, deps.suggester, auth.StaticVerifier{Secret: testSecret}, logger)
	return router, deps
}

func doJSON(t *testing.T, router http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestProcessByKey(t *testing.T) {
	importer := &core.Importer{ID: "imp-1", UserID: "user-1", Key: "key-abc"}

	t.Run("accepts rows and reports success", func(t *testing.T) {
		router, deps := newTestRouter(t)

		deps.importers.EXPECT().ResolveKey(gomock.Any(), "key-abc").Return(importer, nil)
		deps.jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		deps.dispatch.EXPECT().Enqueue(gomock.Any(), core.WorkImportProcess, gomock.Any()).Return("sub-1", nil)

		body := `{"importer_key":"key-abc","validData":[{"email":"a@b.c"}],"invalidData":[]}`
		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports/key/process", "", body)

		require.Equal(t, http.StatusOK, rec.Code)

		var res importsvc.ProcessResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, res.Success)
	})

	t.Run("unknown key maps to 404", func(t *testing.T) {
		router, deps := newTestRouter(t)

		deps.importers.EXPECT().ResolveKey(gomock.Any(), "bogus").Return(nil, core.ErrNotFound)

		body := `{"importer_key":"bogus","validData":[]}`
		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports/key/process", "", body)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing key maps to 400", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports/key/process", "", `{"validData":[]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("garbage key maps to 404, not a server error", func(t *testing.T) {
		// Real stores over a nil connection: the uuid-typed key column means
		// a malformed key must be decided before any database round trip.
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := importsvc.NewService(
			storage.NewJobStore(nil), storage.NewImporterStore(nil),
			nil, nil, logger)
		router := server.NewRouter(svc, &stubSuggester{}, auth.StaticVerifier{Secret: testSecret}, logger)

		body := `{"importer_key":"not-a-uuid","validData":[{"email":"a@b.c"}]}`
		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports/key/process", "", body)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports/key/process", "", `{"importer_key":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("enqueue failure still answers 200 with success false", func(t *testing.T) {
		router, deps := newTestRouter(t)

		deps.importers.EXPECT().ResolveKey(gomock.Any(), "key-abc").Return(importer, nil)
		deps.jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		deps.dispatch.EXPECT().Enqueue(gomock.Any(), core.WorkImportProcess, gomock.Any()).Return("", assert.AnError)
		deps.jobs.EXPECT().Finish(gomock.Any(), gomock.Any(), core.StatusFailed, 0, gomock.Any()).Return(true, nil)

		body := `{"importer_key":"key-abc","validData":[{"email":"a@b.c"}]}`
		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports/key/process", "", body)

		require.Equal(t, http.StatusOK, rec.Code)

		var res importsvc.ProcessResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.False(t, res.Success)
	})
}

func TestCreateImport(t *testing.T) {
	t.Run("creates a pending job for an owned importer", func(t *testing.T) {
		router, deps := newTestRouter(t)

		importer := &core.Importer{ID: "imp-1", UserID: "user-1"}
		deps.importers.EXPECT().Get(gomock.Any(), "user-1", "imp-1").Return(importer, nil)
		deps.jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		deps.dispatch.EXPECT().Enqueue(gomock.Any(), core.WorkImportProcess, gomock.Any()).Return("sub-1", nil)

		body := `{"importer_id":"imp-1","file_name":"contacts.csv","data":[{"email":"a@b.c"},{"email":"d@e.f"}],"invalid_data":[{"email":"nope"}]}`
		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports", testToken, body)

		require.Equal(t, http.StatusCreated, rec.Code)

		var job core.ImportJob
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		assert.Equal(t, core.StatusPending, job.Status)
		assert.Equal(t, 3, job.RowCount)
		assert.Equal(t, 1, job.ErrorCount)
	})

	t.Run("rejects requests without credentials", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports", "", `{"importer_id":"imp-1"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a wrong shared secret", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports", "user-1:wrong", `{"importer_id":"imp-1"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("foreign importer maps to 404", func(t *testing.T) {
		router, deps := newTestRouter(t)

		deps.importers.EXPECT().Get(gomock.Any(), "user-1", "imp-2").Return(nil, core.ErrNotFound)

		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports", testToken, `{"importer_id":"imp-2"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListAndGetImports(t *testing.T) {
	t.Run("lists the caller's jobs", func(t *testing.T) {
		router, deps := newTestRouter(t)

		jobs := []*core.ImportJob{
			{ID: "job-2", UserID: "user-1", Status: core.StatusCompleted},
			{ID: "job-1", UserID: "user-1", Status: core.StatusFailed},
		}
		deps.jobs.EXPECT().List(gomock.Any(), "user-1", 0, 20).Return(jobs, nil)

		rec := doJSON(t, router, http.MethodGet, "/api/v1/imports?limit=20", testToken, "")

		require.Equal(t, http.StatusOK, rec.Code)

		var got []*core.ImportJob
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "job-2", got[0].ID)
	})

	t.Run("fetches a single job by id", func(t *testing.T) {
		router, deps := newTestRouter(t)

		job := &core.ImportJob{ID: "job-1", UserID: "user-1", Status: core.StatusProcessing}
		deps.jobs.EXPECT().Get(gomock.Any(), "user-1", "job-1").Return(job, nil)

		rec := doJSON(t, router, http.MethodGet, "/api/v1/imports/job-1", testToken, "")

		require.Equal(t, http.StatusOK, rec.Code)

		var got core.ImportJob
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, core.StatusProcessing, got.Status)
	})

	t.Run("garbage job id maps to 404, not a server error", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := importsvc.NewService(
			storage.NewJobStore(nil), storage.NewImporterStore(nil),
			nil, nil, logger)
		router := server.NewRouter(svc, &stubSuggester{}, auth.StaticVerifier{Secret: testSecret}, logger)

		rec := doJSON(t, router, http.MethodGet, "/api/v1/imports/not-a-uuid", testToken, "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown or foreign job maps to 404", func(t *testing.T) {
		router, deps := newTestRouter(t)

		deps.jobs.EXPECT().Get(gomock.Any(), "user-1", "job-9").Return(nil, core.ErrNotFound)

		rec := doJSON(t, router, http.MethodGet, "/api/v1/imports/job-9", testToken, "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSuggestFixes(t *testing.T) {
	t.Run("returns the collaborator's fixes", func(t *testing.T) {
		router, deps := newTestRouter(t)
		deps.suggester.resp = enrich.SuggestResponse{
			Fixes: []enrich.Fix{{RowIndex: 0, ColumnIndex: 1, SuggestedValue: "a@b.c"}},
		}

		body := `{"errors":[{"row":0}],"data_rows":[{"email":"nope"}],"template_fields":[]}`
		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports/key/suggest-fixes", "", body)

		require.Equal(t, http.StatusOK, rec.Code)

		var got enrich.SuggestResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got.Fixes, 1)
		assert.Equal(t, "a@b.c", got.Fixes[0].SuggestedValue)
	})

	t.Run("exhausted budget maps to 429", func(t *testing.T) {
		router, deps := newTestRouter(t)
		deps.suggester.err = enrich.ErrRateLimited

		body := `{"errors":[],"data_rows":[],"template_fields":[]}`
		rec := doJSON(t, router, http.MethodPost, "/api/v1/imports/key/suggest-fixes", "", body)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}
