package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lbaudin/androfleet/internal/service/commands"
	"github.com/lbaudin/androfleet/internal/service/scans"
	"github.com/lbaudin/androfleet/internal/utils"
)

// ScanHandler serves the scan lifecycle: admin requests, device uploads and
// the read-side reports.
type ScanHandler struct {
	Scans *scans.Service
	Queue *commands.Queue
}

// POST /api/v1/admin/devices/{id}/scans
// RequestFileList godoc
// @Summary Request a file inventory from a device
// @Tags Scans
// @Accept json
// @Produce json
// @Success 202 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/admin/devices/{id}/scans [post]
func (h *ScanHandler) RequestFileList(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDeviceID(r)
	if !ok {
		utils.Fail(w, http.StatusBadRequest, "Invalid device id")
		return
	}
	var req scans.FileListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}
	session, cmd, err := h.Scans.RequestFileList(r.Context(), id, req)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusAccepted, utils.Payload{
		Success: true,
		Message: "File list requested",
		Data: map[string]any{
			"scan_id": session.ScanID,
			"scan":    session,
			"command": cmd,
		},
	})
}

// POST /api/v1/scans/upload
// Upload godoc
// @Summary Upload a scan's file list
// @Description Device-facing bulk ingestion; re-uploading a scan_id replaces the prior set
// @Tags Scans
// @Accept json
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/scans/upload [post]
func (h *ScanHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req scans.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}
	result, err := h.Scans.Ingest(r.Context(), req)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Scan ingested", result)
}

// GET /api/v1/admin/devices/{id}/scans
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDeviceID(r)
	if !ok {
		utils.Fail(w, http.StatusBadRequest, "Invalid device id")
		return
	}
	page, err := h.Scans.List(r.Context(), id, queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Scans", page)
}

// GET /api/v1/admin/devices/{id}/scans/detail?scan_id=
func (h *ScanHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDeviceID(r)
	if !ok {
		utils.Fail(w, http.StatusBadRequest, "Invalid device id")
		return
	}
	scanID := r.URL.Query().Get("scan_id")
	if scanID == "" {
		utils.Fail(w, http.StatusBadRequest, "scan_id is required")
		return
	}
	detail, err := h.Scans.Detail(r.Context(), id, scanID)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Scan detail", detail)
}

// GET /api/v1/admin/devices/{id}/scans/stats?scan_id=
// Without scan_id the latest completed scan is reported.
func (h *ScanHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDeviceID(r)
	if !ok {
		utils.Fail(w, http.StatusBadRequest, "Invalid device id")
		return
	}
	report, err := h.Scans.Report(r.Context(), id, r.URL.Query().Get("scan_id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Scan statistics", report)
}

// POST /api/v1/admin/devices/{id}/scans/prune?keep=
func (h *ScanHandler) Prune(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDeviceID(r)
	if !ok {
		utils.Fail(w, http.StatusBadRequest, "Invalid device id")
		return
	}
	removed, err := h.Scans.Prune(r.Context(), id, queryInt(r, "keep", scans.DefaultKeepScans))
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Scans pruned", map[string]any{"removed": removed})
}

// POST /api/v1/admin/scans/{scanId}/cancel
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	scanID := r.PathValue("scanId")
	if scanID == "" {
		utils.Fail(w, http.StatusBadRequest, "Invalid scan id")
		return
	}
	session, err := h.Scans.Cancel(r.Context(), scanID)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Scan cancelled", session)
}

// POST /api/v1/admin/maintenance/reconcile
// The periodic trigger lives outside the server (cron, systemd timer); this
// endpoint is the hook it calls.
func (h *ScanHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	expired, err := h.Queue.ExpireOverdue(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	abandoned, err := h.Scans.ReconcileAbandoned(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Reconciled", map[string]any{
		"commands_expired": expired,
		"scans_abandoned":  abandoned,
	})
}
