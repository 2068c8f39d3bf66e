package handler

import (
	"context"
	"net/http"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/logger"
	"github.com/FlorentB974/lanmon/internal/repository"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 100
)

// ScanTrigger starts scan sessions on demand. Implemented by the
// scheduler.
type ScanTrigger interface {
	// TriggerAsync starts a session (or joins the running one) and
	// returns its row without waiting for completion.
	TriggerAsync(ctx context.Context) *domain.ScanSession
	// Running reports the in-flight session, or nil when idle.
	Running() *domain.ScanSession
}

// ScanHandler serves scan sessions, the event feed, on-demand triggers
// and dashboard statistics.
type ScanHandler struct {
	store   repository.Store
	trigger ScanTrigger
	log     logger.Logger
}

// NewScanHandler creates a scan handler.
func NewScanHandler(store repository.Store, trigger ScanTrigger, log logger.Logger) *ScanHandler {
	return &ScanHandler{store: store, trigger: trigger, log: log.Named("scans")}
}

// Trigger starts an on-demand scan. A request arriving while a scan is
// already running joins that scan instead of starting another; either
// way the reply carries the session that will serve the request.
// POST /api/scan
func (h *ScanHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	session := h.trigger.TriggerAsync(r.Context())
	if session == nil {
		writeError(h.log, w, "Failed to start scan", "could not create scan session", http.StatusInternalServerError)
		return
	}
	writeJSON(h.log, w, map[string]any{
		"status":  "scan_started",
		"session": session,
	}, http.StatusAccepted)
}

// Status reports whether a scan is currently running.
// GET /api/scan/status
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	if session := h.trigger.Running(); session != nil {
		writeJSON(h.log, w, map[string]any{
			"scanning": true,
			"session":  session,
		}, http.StatusOK)
		return
	}
	writeJSON(h.log, w, map[string]any{"scanning": false}, http.StatusOK)
}

// Sessions returns recent scan sessions, newest first.
// GET /api/scans?limit=...
func (h *ScanHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(r.URL.Query().Get("limit"), defaultSessionLimit, maxSessionLimit)
	sessions, err := h.store.GetRecentSessions(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to list sessions", logger.Error(err))
		writeError(h.log, w, "Failed to list scan sessions", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(h.log, w, map[string]any{"sessions": sessions}, http.StatusOK)
}

// Events returns the recent lifecycle event feed across all devices,
// newest first.
// GET /api/events?limit=...
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(r.URL.Query().Get("limit"), defaultEventLimit, maxEventLimit)
	events, err := h.store.GetRecentEvents(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to list events", logger.Error(err))
		writeError(h.log, w, "Failed to list events", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(h.log, w, map[string]any{"events": events}, http.StatusOK)
}

// Stats returns dashboard statistics.
// GET /api/stats
func (h *ScanHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.log.Error("failed to compute stats", logger.Error(err))
		writeError(h.log, w, "Failed to compute statistics", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(h.log, w, map[string]any{
		"stats":            stats,
		"scan_in_progress": h.trigger.Running() != nil,
	}, http.StatusOK)
}
