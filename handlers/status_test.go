package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/sitephotosync/database"
	"github.com/camden-git/sitephotosync/location"
	"github.com/camden-git/sitephotosync/repository"
	"github.com/camden-git/sitephotosync/traversal"
)

type testServer struct {
	handler http.Handler
	uploads *repository.UploadRepository
	runs    *repository.RunRepository
	store   *database.CheckpointStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	gdb, err := database.InitGormDB(filepath.Join(dir, "photos.db"), nil)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(gdb))
	sdb, err := database.InitDB(filepath.Join(dir, "checkpoint.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		sdb.Close()
		if raw, err := gdb.DB(); err == nil {
			raw.Close()
		}
	})

	ts := &testServer{
		uploads: repository.NewUploadRepository(gdb),
		runs:    repository.NewRunRepository(gdb),
		store:   database.NewCheckpointStore(sdb),
	}
	status := &StatusHandler{Uploads: ts.uploads, Runs: ts.runs, Checkpoints: ts.store}
	ts.handler = NewRouter(status, nil, []string{"http://localhost:3000"}, nil)
	return ts
}

func (ts *testServer) get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestListUploads(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.uploads.RecordUpload("A_L1_Plot_7", "2.3/photos_on_asite", "1.jpg", 10, nil)
	require.NoError(t, err)
	_, err = ts.uploads.RecordUpload("A_L1_Plot_7", "2.3/photos_on_asite", "2.jpg", 20, nil)
	require.NoError(t, err)

	var body struct {
		Code    string `json:"code"`
		Count   int    `json:"count"`
		Uploads []struct {
			Filename string `json:"filename"`
		} `json:"uploads"`
	}
	require.Equal(t, http.StatusOK, ts.get(t, "/api/locations/A_L1_Plot_7/uploads", &body))
	assert.Equal(t, "A_L1_Plot_7", body.Code)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Uploads, 2)
	assert.Equal(t, "2.jpg", body.Uploads[1].Filename)
}

func TestListUploadsRejectsBadCode(t *testing.T) {
	ts := newTestServer(t)

	var body APIErrorResponse
	require.Equal(t, http.StatusBadRequest, ts.get(t, "/api/locations/unsorted/uploads", &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "invalid_location_code", body.Errors[0].Code)
	assert.Equal(t, "400", body.Errors[0].Status)
}

func TestRuns(t *testing.T) {
	ts := newTestServer(t)

	var notFound APIErrorResponse
	require.Equal(t, http.StatusNotFound, ts.get(t, "/api/runs/latest", &notFound))
	assert.Equal(t, "run_not_found", notFound.Errors[0].Code)

	report := traversal.NewReport()
	report.Add(traversal.Outcome{Code: "A_L1_Plot_7", Kind: traversal.OutcomeUploaded, Uploaded: 3, Row: 4})
	report.Add(traversal.Outcome{Code: "A_L1_Plot_8", Kind: traversal.OutcomeSkippedCompleted, Row: 5})
	report.FinishedAt = time.Now()
	report.EndOfTable = true
	require.NoError(t, ts.runs.SaveReport(report, nil))

	var run struct {
		RunID      string `json:"run_id"`
		EndOfTable bool   `json:"end_of_table"`
		Uploaded   int    `json:"uploaded"`
		Outcomes   []struct {
			Code string `json:"code"`
			Kind string `json:"kind"`
		} `json:"outcomes"`
	}
	require.Equal(t, http.StatusOK, ts.get(t, "/api/runs/latest", &run))
	assert.Equal(t, report.RunID, run.RunID)
	assert.True(t, run.EndOfTable)
	assert.Equal(t, 3, run.Uploaded)
	require.Len(t, run.Outcomes, 2)
	assert.Equal(t, "skipped-completed", run.Outcomes[1].Kind)

	require.Equal(t, http.StatusOK, ts.get(t, "/api/runs/"+report.RunID, &run))
	assert.Equal(t, report.RunID, run.RunID)

	require.Equal(t, http.StatusNotFound, ts.get(t, "/api/runs/nope", nil))
}

func TestGetCheckpoint(t *testing.T) {
	ts := newTestServer(t)

	var body checkpointResponse
	require.Equal(t, http.StatusOK, ts.get(t, "/api/checkpoint", &body))
	assert.False(t, body.Saved)
	assert.Equal(t, "start", body.Resume)

	require.NoError(t, ts.store.SaveCheckpoint(context.Background(), traversal.SavedCheckpoint{
		RunID: "run-9", LastCode: location.MustCode("C", 3, 26), SavedAt: time.Unix(1_700_000_000, 0),
	}))

	body = checkpointResponse{}
	require.Equal(t, http.StatusOK, ts.get(t, "/api/checkpoint", &body))
	assert.True(t, body.Saved)
	assert.Equal(t, "run-9", body.RunID)
	assert.Equal(t, "C_L3_Plot_26", body.LastCode)
	assert.Equal(t, "block c, level 03, after C_L3_Plot_26", body.Resume)
	require.NotNil(t, body.SavedAt)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	var body APIErrorResponse
	require.Equal(t, http.StatusNotFound, ts.get(t, "/api/albums", &body))
	assert.Equal(t, "not_found", body.Errors[0].Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/checkpoint", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEventsRoute(t *testing.T) {
	ts := newTestServer(t)

	var body APIErrorResponse
	require.Equal(t, http.StatusNotFound, ts.get(t, "/api/events", &body))

	called := false
	ts.handler = NewRouter(&StatusHandler{}, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusSwitchingProtocols)
	}, nil, nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusSwitchingProtocols, rec.Code)
}
