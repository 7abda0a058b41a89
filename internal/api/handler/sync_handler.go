package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"invoice-export-service/internal/exporter"
	"invoice-export-service/internal/model"

	"github.com/rs/zerolog"
)

// Handler serves the admin sync API.
type Handler struct {
	svc  *exporter.Service
	feed *Feed
	log  zerolog.Logger
}

// New builds the handler set.
func New(svc *exporter.Service, feed *Feed, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, feed: feed, log: log}
}

// SyncBasicData triggers a reference data export
// @Summary Trigger basic data export
// @Description Export currencies, invoice types and country code tables to the archive. Streams progress via Server-Sent Events.
// @Tags sync
// @Accept json
// @Produce text/event-stream
// @Param request body model.BasicDataExportRequest true "Export parameters"
// @Success 200 {string} string "SSE stream"
// @Failure 409 {object} map[string]interface{} "Export already running"
// @Router /admin/sync/basic-data [post]
func (h *Handler) SyncBasicData(w http.ResponseWriter, r *http.Request) {
	var req model.BasicDataExportRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
	}

	run, err := h.svc.StartBasicDataExport(req)
	if err != nil {
		h.rejectStart(w, err, "Basic data export is already running. Please wait for it to complete.")
		return
	}
	h.streamRun(w, r, run)
}

// SyncInvoices triggers an invoice export
// @Summary Trigger invoice export
// @Description Export invoice documents grouped by tenant and country, full or incremental. Streams progress via Server-Sent Events.
// @Tags sync
// @Accept json
// @Produce text/event-stream
// @Param request body model.InvoiceExportRequest true "Export parameters"
// @Success 200 {string} string "SSE stream"
// @Failure 409 {object} map[string]interface{} "Export already running"
// @Router /admin/sync/invoices [post]
func (h *Handler) SyncInvoices(w http.ResponseWriter, r *http.Request) {
	// Defaults match the original admin API: incremental with 4 workers.
	req := model.InvoiceExportRequest{Incremental: true, Workers: 4}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
	}
	if req.Workers < 1 || req.Workers > 16 {
		http.Error(w, "workers must be between 1 and 16", http.StatusBadRequest)
		return
	}

	run, err := h.svc.StartInvoiceExport(req)
	if err != nil {
		h.rejectStart(w, err, "Invoice export is already running. Please wait for it to complete.")
		return
	}
	h.streamRun(w, r, run)
}

// rejectStart distinguishes "legitimately busy" from a lock setup
// failure so operators can tell the two apart.
func (h *Handler) rejectStart(w http.ResponseWriter, err error, busyMsg string) {
	if errors.Is(err, exporter.ErrBusy) {
		http.Error(w, busyMsg, http.StatusConflict)
		return
	}
	h.log.Error().Err(err).Msg("failed to start export run")
	http.Error(w, "Failed to acquire export lock: "+err.Error(), http.StatusInternalServerError)
}

// streamRun turns a run's relay into an SSE response. The run itself is
// detached: if the client disconnects the stream stops, the run
// completes in the background and releases its locks on completion.
func (h *Handler) streamRun(w http.ResponseWriter, r *http.Request, run *exporter.Run) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	started := model.Event{
		Kind: model.EventStarted,
		Payload: map[string]interface{}{
			"script":    run.Kind,
			"mode":      run.Mode,
			"params":    run.Params,
			"timestamp": run.StartedAt.Format(time.RFC3339),
		},
		Timestamp: run.StartedAt,
	}
	writeSSE(w, flusher, started)
	h.feed.Broadcast(started)

	run.Relay.Consume(r.Context(), run.Done(), func(e model.Event) {
		writeSSE(w, flusher, e)
		h.feed.Broadcast(e)
	})

	select {
	case <-r.Context().Done():
		// Stream abandoned; the terminal event has nowhere to go.
		return
	default:
	}

	terminal := terminalEvent(run)
	writeSSE(w, flusher, terminal)
	h.feed.Broadcast(terminal)
}

// terminalEvent builds sync_completed or error from the run outcome.
func terminalEvent(run *exporter.Run) model.Event {
	summary, err := run.Result()
	now := time.Now().UTC()
	if err != nil {
		return model.Event{
			Kind: model.EventError,
			Payload: map[string]interface{}{
				"message": err.Error(),
				"kind":    "run_failed",
			},
			Timestamp: now,
		}
	}

	status := "success"
	switch s := summary.(type) {
	case model.RunSummary:
		if !s.Success {
			status = "partial"
		}
	case model.BasicDataSummary:
		if !s.Success {
			status = "error"
		}
	}
	return model.Event{
		Kind: model.EventCompleted,
		Payload: map[string]interface{}{
			"status":           status,
			"duration_seconds": now.Sub(run.StartedAt).Seconds(),
			"summary":          summary,
		},
		Timestamp: now,
	}
}

// writeSSE writes one event frame and flushes it.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, e model.Event) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
	flusher.Flush()
}

// SyncStatus reports per-kind run status
// @Summary Get sync status
// @Description Report whether an export of each kind is currently running
// @Tags sync
// @Produce json
// @Success 200 {object} map[string]model.SyncStatus
// @Router /admin/sync/status [get]
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.svc.Status())
}

// Watermarks lists the per-tenant export watermarks
// @Summary List watermarks
// @Description Return the durable per-tenant incremental export boundaries
// @Tags sync
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /admin/sync/watermarks [get]
func (h *Handler) Watermarks(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Watermarks()
	if err != nil {
		http.Error(w, "Failed to read watermark ledger", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"watermarks": records,
		"count":      len(records),
	})
}

// Events upgrades to a websocket feed of export events
// @Summary Live export event feed
// @Description Mirror log, progress and lifecycle events of running exports over a websocket
// @Tags sync
// @Router /admin/sync/events [get]
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	h.feed.Serve(w, r)
}
