package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lbaudin/androfleet/internal/repositories"
	"github.com/lbaudin/androfleet/internal/service/devices"
	"github.com/lbaudin/androfleet/internal/utils"
)

// DeviceHandler serves the device-facing registration/heartbeat endpoints and
// the admin device management surface.
type DeviceHandler struct {
	Registry *devices.Registry
}

type registerInput struct {
	AndroidID string `json:"androidId"`
	devices.Attributes
}

// POST /api/v1/devices/register
// Register godoc
// @Summary Register or update a device
// @Description Public upsert-by-androidId; returns the server key the phone must store
// @Tags Devices
// @Accept json
// @Produce json
// @Success 200 {object} utils.Payload
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/devices/register [post]
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input registerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}

	device, created, err := h.Registry.Register(r.Context(), input.AndroidID, input.Attributes)
	if err != nil {
		serviceError(w, err)
		return
	}

	status, code := "updated", http.StatusOK
	if created {
		status, code = "registered", http.StatusCreated
	}
	utils.JSONResponse(w, code, utils.Payload{
		Success: true,
		Message: "Device " + status,
		Data: map[string]any{
			"status":     status,
			"device_id":  device.ID,
			"server_key": device.DeviceKey,
		},
	})
}

// POST /api/v1/devices/heartbeat
// Heartbeat godoc
// @Summary Periodic device state report
// @Tags Devices
// @Accept json
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/devices/heartbeat [post]
func (h *DeviceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	type Input struct {
		AndroidID string `json:"androidId"`
		devices.Heartbeat
	}
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}

	ts, err := h.Registry.RecordHeartbeat(r.Context(), input.AndroidID, input.Heartbeat)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Heartbeat received", map[string]any{
		"status":    "ok",
		"timestamp": ts.Format(time.RFC3339),
	})
}

// GET /api/v1/admin/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	f := repositories.DeviceFilter{
		Manufacturer:   r.URL.Query().Get("manufacturer"),
		AndroidVersion: r.URL.Query().Get("android_version"),
		Model:          r.URL.Query().Get("model"),
		Last24h:        queryBool(r, "last_24h"),
		Limit:          queryInt(r, "limit", 20),
		Offset:         queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active := v == "true"
		f.IsActive = &active
	}

	list, total, err := h.Registry.List(r.Context(), f)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Devices", map[string]any{"devices": list, "total": total})
}

// GET /api/v1/admin/devices/{id}
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDeviceID(r)
	if !ok {
		utils.Fail(w, http.StatusBadRequest, "Invalid device id")
		return
	}
	device, err := h.Registry.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Device", device)
}

// GET /api/v1/admin/devices/search?q=
func (h *DeviceHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.Registry.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Search results", map[string]any{
		"count":   len(results),
		"results": results,
	})
}

// GET /api/v1/admin/devices/stats
func (h *DeviceHandler) FleetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Registry.FleetStats(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Fleet statistics", stats)
}

// POST /api/v1/admin/devices/{id}/activate
func (h *DeviceHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// POST /api/v1/admin/devices/{id}/deactivate
func (h *DeviceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *DeviceHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := pathDeviceID(r)
	if !ok {
		utils.Fail(w, http.StatusBadRequest, "Invalid device id")
		return
	}
	device, err := h.Registry.SetActive(r.Context(), id, active)
	if err != nil {
		serviceError(w, err)
		return
	}
	msg := "Device deactivated"
	if active {
		msg = "Device activated"
	}
	utils.OK(w, msg, map[string]any{
		"device_id":  device.ID,
		"android_id": device.AndroidID,
		"is_active":  device.IsActive,
	})
}

// POST /api/v1/admin/devices/{id}/regenerate-key
func (h *DeviceHandler) RegenerateKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDeviceID(r)
	if !ok {
		utils.Fail(w, http.StatusBadRequest, "Invalid device id")
		return
	}
	oldKey, newKey, err := h.Registry.RegenerateKey(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	// The new key reaches the phone out of band; the old one is already dead.
	utils.OK(w, "Key regenerated", map[string]any{
		"old_key":        utils.MaskKey(oldKey),
		"new_server_key": newKey,
	})
}
