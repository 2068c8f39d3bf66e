package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/logger"
	"github.com/FlorentB974/lanmon/internal/repository"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500

	defaultEventLimit = 50
	maxEventLimit     = 500
)

// DeviceEnricher runs the post-discovery enrichment pass over a set of
// observations. Implemented by the enrich package.
type DeviceEnricher interface {
	Apply(ctx context.Context, observations []domain.Observation) []domain.Observation
}

// DeviceHandler serves the device registry endpoints.
type DeviceHandler struct {
	store    repository.Store
	enricher DeviceEnricher
	log      logger.Logger
}

// NewDeviceHandler creates a device handler over the store. enricher
// may be nil, which disables the rescan endpoint.
func NewDeviceHandler(store repository.Store, enricher DeviceEnricher, log logger.Logger) *DeviceHandler {
	return &DeviceHandler{store: store, enricher: enricher, log: log.Named("devices")}
}

// DeviceListResponse is the paginated device list body.
type DeviceListResponse struct {
	Devices []*domain.Device `json:"devices"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// List returns devices, filtered and paginated.
// GET /api/devices?online=true&search=...&limit=...&offset=...
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repository.DeviceFilter{
		OnlineOnly: query.Get("online") == "true",
		Search:     query.Get("search"),
		Limit:      clampInt(query.Get("limit"), defaultPageSize, maxPageSize),
		Offset:     parseNonNegative(query.Get("offset")),
	}

	devices, total, err := h.store.ListDevices(r.Context(), filter)
	if err != nil {
		h.log.Error("failed to list devices", logger.Error(err))
		writeError(h.log, w, "Failed to list devices", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(h.log, w, DeviceListResponse{
		Devices: devices,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, http.StatusOK)
}

// Get returns a single device by numeric ID.
// GET /api/devices/{id}
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}

	device, err := h.store.GetDevice(r.Context(), id)
	if err != nil {
		h.deviceError(w, id, err, "Failed to get device")
		return
	}
	writeJSON(h.log, w, device, http.StatusOK)
}

// GetByMAC returns a single device by hardware address.
// GET /api/devices/mac/{mac}
func (h *DeviceHandler) GetByMAC(w http.ResponseWriter, r *http.Request) {
	mac, err := domain.CanonicalMAC(chi.URLParam(r, "mac"))
	if err != nil {
		writeError(h.log, w, "Invalid MAC address", err.Error(), http.StatusBadRequest)
		return
	}

	device, err := h.store.GetDeviceByMAC(r.Context(), mac)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(h.log, w, "Device not found", "", http.StatusNotFound)
			return
		}
		h.log.Error("failed to get device", logger.String("mac", mac), logger.Error(err))
		writeError(h.log, w, "Failed to get device", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(h.log, w, device, http.StatusOK)
}

// Update changes the user-editable fields of a device. Fields absent
// from the body are left untouched.
// PATCH /api/devices/{id}
func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}

	var update domain.DeviceUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(h.log, w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	device, err := h.store.UpdateDeviceUserFields(r.Context(), id, update)
	if err != nil {
		h.deviceError(w, id, err, "Failed to update device")
		return
	}
	writeJSON(h.log, w, device, http.StatusOK)
}

// Delete removes a device and its event history.
// DELETE /api/devices/{id}
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteDevice(r.Context(), id); err != nil {
		h.deviceError(w, id, err, "Failed to delete device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events returns a device's lifecycle history, newest first.
// GET /api/devices/{id}/events?limit=...
func (h *DeviceHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}

	// Confirm the device exists so a bad ID is a 404, not an empty list.
	if _, err := h.store.GetDevice(r.Context(), id); err != nil {
		h.deviceError(w, id, err, "Failed to get device")
		return
	}

	limit := clampInt(r.URL.Query().Get("limit"), defaultEventLimit, maxEventLimit)
	events, err := h.store.GetDeviceEvents(r.Context(), id, limit)
	if err != nil {
		h.log.Error("failed to get device events", logger.Int64("device_id", id), logger.Error(err))
		writeError(h.log, w, "Failed to get device events", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(h.log, w, map[string]any{"events": events}, http.StatusOK)
}

// Rescan re-runs the enrichment pass against a single device and
// persists whatever it learns: hostname, vendor, friendly name, model,
// open ports and inferred device type. Known values are never cleared
// by a lookup that comes back empty.
// POST /api/devices/{id}/rescan
func (h *DeviceHandler) Rescan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	if h.enricher == nil {
		writeError(h.log, w, "Rescan not available", "enrichment is disabled", http.StatusServiceUnavailable)
		return
	}

	device, err := h.store.GetDevice(r.Context(), id)
	if err != nil {
		h.deviceError(w, id, err, "Failed to get device")
		return
	}
	if device.IP == "" {
		writeError(h.log, w, "Device has no IP address", "", http.StatusBadRequest)
		return
	}

	started := time.Now()
	enriched := h.enricher.Apply(r.Context(), []domain.Observation{
		{MAC: device.MAC, IP: device.IP},
	})
	if len(enriched) == 1 {
		device.ApplyObservation(enriched[0])
	}

	if err := h.store.UpsertDevice(r.Context(), device); err != nil {
		h.log.Error("failed to persist rescan result", logger.Int64("device_id", id), logger.Error(err))
		writeError(h.log, w, "Failed to update device", err.Error(), http.StatusInternalServerError)
		return
	}

	h.log.Info("device rescanned",
		logger.Int64("device_id", id),
		logger.String("mac", device.MAC),
		logger.Duration("elapsed", time.Since(started)))
	writeJSON(h.log, w, device, http.StatusOK)
}

func (h *DeviceHandler) deviceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(h.log, w, "Invalid device ID", "Device ID must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *DeviceHandler) deviceError(w http.ResponseWriter, id int64, err error, message string) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(h.log, w, "Device not found", "", http.StatusNotFound)
		return
	}
	h.log.Error("device request failed", logger.Int64("device_id", id), logger.Error(err))
	writeError(h.log, w, message, err.Error(), http.StatusInternalServerError)
}

// clampInt parses a positive integer query value, falling back to def
// and capping at max.
func clampInt(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func parseNonNegative(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
