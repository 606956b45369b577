package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lbaudin/androfleet/internal/service/commands"
	"github.com/lbaudin/androfleet/internal/service/devices"
	"github.com/lbaudin/androfleet/internal/utils"
)

// CommandHandler serves admin command dispatch and the device polling side.
type CommandHandler struct {
	Queue    *commands.Queue
	Registry *devices.Registry
}

// POST /api/v1/admin/devices/{id}/commands
// SendCommand godoc
// @Summary Queue a command for a device
// @Tags Commands
// @Accept json
// @Produce json
// @Success 202 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/admin/devices/{id}/commands [post]
func (h *CommandHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDeviceID(r)
	if !ok {
		utils.Fail(w, http.StatusBadRequest, "Invalid device id")
		return
	}
	var req commands.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}

	cmd, err := h.Queue.Enqueue(r.Context(), id, req)
	if err != nil {
		serviceError(w, err)
		return
	}
	device, err := h.Registry.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusAccepted, utils.Payload{
		Success: true,
		Message: "Command queued",
		Data: map[string]any{
			"command_id": cmd.CommandID,
			"command":    cmd,
			"device": map[string]any{
				"id":         device.ID,
				"android_id": device.AndroidID,
				"model":      device.Model,
			},
		},
	})
}

// GET /api/v1/admin/devices/{id}/commands/pending
func (h *CommandHandler) Pending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDeviceID(r)
	if !ok {
		utils.Fail(w, http.StatusBadRequest, "Invalid device id")
		return
	}
	pending, err := h.Queue.Pending(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Pending commands", map[string]any{
		"count":    len(pending),
		"commands": pending,
	})
}

type deviceAuthInput struct {
	AndroidID string `json:"androidId"`
	DeviceKey string `json:"deviceKey"`
}

// POST /api/v1/devices/commands/poll
// The device presents its server key and receives its outstanding commands.
// Polling is non-destructive; commands stay until acknowledged or expired.
func (h *CommandHandler) Poll(w http.ResponseWriter, r *http.Request) {
	var input deviceAuthInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}
	device, err := h.Registry.Authenticate(r.Context(), input.AndroidID, input.DeviceKey)
	if err != nil {
		serviceError(w, err)
		return
	}
	cmds, err := h.Queue.Poll(r.Context(), device)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Commands", map[string]any{
		"count":    len(cmds),
		"commands": cmds,
	})
}

// POST /api/v1/devices/commands/ack
func (h *CommandHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	type Input struct {
		deviceAuthInput
		CommandID string `json:"commandId"`
	}
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.CommandID == "" {
		utils.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}
	device, err := h.Registry.Authenticate(r.Context(), input.AndroidID, input.DeviceKey)
	if err != nil {
		serviceError(w, err)
		return
	}
	cmd, err := h.Queue.Acknowledge(r.Context(), device, input.CommandID)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Command acknowledged", map[string]any{
		"command_id": cmd.CommandID,
		"status":     cmd.Status,
	})
}
