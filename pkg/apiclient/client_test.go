package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/68c1a2b3c4d5e6f7a8b9c0d1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"job_id": "68c1a2b3c4d5e6f7a8b9c0d1",
			"state":  "completed",
			"progress": map[string]any{
				"lines_processed":  100,
				"records_inserted": 98,
				"error_count":      2,
			},
		})
	}))
	defer srv.Close()

	job, err := New(srv.URL).GetJob("68c1a2b3c4d5e6f7a8b9c0d1")
	require.NoError(t, err)
	assert.Equal(t, "completed", job.State)
	assert.Equal(t, int64(98), job.Progress.RecordsInserted)
}

func TestErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Job not found"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetJob("68c1a2b3c4d5e6f7a8b9c0d1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Job not found", apiErr.Message)
}

func TestGetHealthDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "degraded",
			"services": map[string]string{"mongodb": "ok", "s3": "error"},
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetHealth()
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	health := apiErr.Health()
	require.NotNil(t, health)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "error", health.Services["s3"])
}

func TestProcess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"job_id": "68c1a2b3c4d5e6f7a8b9c0d2",
			"state":  "queued",
		})
	}))
	defer srv.Close()

	res, err := New(srv.URL).Process("68c1a2b3c4d5e6f7a8b9c0d1")
	require.NoError(t, err)
	assert.Equal(t, "queued", res.State)
}

func TestUploadFileStreamsMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o600))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "data.csv", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"file_id": "68c1a2b3c4d5e6f7a8b9c0d3",
			"message": "uploaded",
		})
	}))
	defer srv.Close()

	res, err := New(srv.URL).UploadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "uploaded", res.Message)
}

func TestListFilesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "processed", r.URL.Query().Get("status"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"files": []any{}, "count": 0})
	}))
	defer srv.Close()

	list, err := New(srv.URL).ListFiles(0, 10, "processed")
	require.NoError(t, err)
	assert.Equal(t, 0, list.Count)
}
