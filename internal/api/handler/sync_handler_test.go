package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"invoice-export-service/internal/config"
	"invoice-export-service/internal/exporter"
	"invoice-export-service/internal/model"
	"invoice-export-service/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		DBPath:            filepath.Join(root, "source.db"),
		OutputDir:         filepath.Join(root, "tenant-data"),
		BasicDataDir:      filepath.Join(root, "basic-data"),
		StateDir:          filepath.Join(root, "state"),
		Workers:           2,
		SafetyBuffer:      time.Second,
		HeartbeatInterval: time.Minute,
	}

	db, err := store.Open(cfg.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	svc, err := exporter.NewService(db, cfg, zerolog.Nop())
	require.NoError(t, err)

	log := zerolog.Nop()
	return New(svc, NewFeed(log), log), cfg
}

func TestSyncStatusEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.SyncStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/sync/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status map[string]model.SyncStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Contains(t, status, exporter.KindInvoices)
	require.Contains(t, status, exporter.KindBasicData)
	assert.False(t, status[exporter.KindInvoices].IsRunning)
}

func TestWatermarksEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Watermarks(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/sync/watermarks", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
}

func TestSyncBasicDataStreamsLifecycleEvents(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync/basic-data", strings.NewReader(`{}`))
	h.SyncBasicData(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: sync_started")
	assert.Contains(t, body, "event: sync_completed")

	// The stream has fully drained, so the kind is free again.
	rec = httptest.NewRecorder()
	h.SyncStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/sync/status", nil))
	var status map[string]model.SyncStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status[exporter.KindBasicData].IsRunning)
}

func TestSyncInvoicesRejectsInvalidWorkerCount(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync/invoices", strings.NewReader(`{"workers": 99}`))
	h.SyncInvoices(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncInvoicesRejectsMalformedBody(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync/invoices", strings.NewReader(`{not json`))
	h.SyncInvoices(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncInvoicesBusyReturnsConflict(t *testing.T) {
	h, cfg := newTestHandler(t)

	// Another process holds the invoices lock.
	foreign := exporter.NewProcessLock(cfg.StateDir, exporter.KindInvoices)
	ok, err := foreign.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer foreign.Release()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync/invoices", strings.NewReader(`{}`))
	h.SyncInvoices(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	// Busy is a rejection before any stream begins, never a half-open SSE.
	assert.NotEqual(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestTerminalEventShape(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync/invoices", strings.NewReader(`{"incremental": false}`))
	h.SyncInvoices(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Empty source: zero groups is still a successful run.
	var completed map[string]interface{}
	for _, frame := range strings.Split(rec.Body.String(), "\n\n") {
		if !strings.Contains(frame, "event: sync_completed") {
			continue
		}
		for _, line := range strings.Split(frame, "\n") {
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				require.NoError(t, json.Unmarshal([]byte(data), &completed))
			}
		}
	}
	require.NotNil(t, completed, "stream must end with sync_completed")
	assert.Equal(t, "success", completed["status"])
	assert.Contains(t, completed, "summary")
	assert.Contains(t, completed, "duration_seconds")
}
