// Package scans implements the file-inventory pipeline: scan session
// lifecycle, bulk ingestion of uploaded file lists, and the derived
// per-scan statistics cache.
package scans

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/repositories"
	"github.com/lbaudin/androfleet/internal/service/commands"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
)

// DefaultKeepScans is how many sessions pruning retains per device.
const DefaultKeepScans = 5

const defaultScanRoot = "/storage/emulated/0"

// Service owns scan sessions and their file inventories.
type Service struct {
	repo    repositories.ScanRepository
	devices repositories.DeviceRepository
	queue   *commands.Queue
	log     *slog.Logger
	now     func() time.Time
	locks   *lockTable
}

func NewService(repo repositories.ScanRepository, devices repositories.DeviceRepository, queue *commands.Queue, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		devices: devices,
		queue:   queue,
		log:     log,
		now:     time.Now,
		locks:   newLockTable(),
	}
}

// FileListRequest is the admin's ask for a device file enumeration.
type FileListRequest struct {
	commands.ListFilesParams
	Priority   string `json:"priority"`
	ExpiresIn  *int   `json:"expires_in"`
	RequireAck *bool  `json:"require_ack"`
}

// RequestFileList creates a session and queues the list_files command. The
// session starts pending and moves to scanning once the command is committed;
// "scanning" means the server believes the device is working, not that the
// device confirmed receipt.
func (s *Service) RequestFileList(ctx context.Context, deviceID uint, req FileListRequest) (*models.ScanSession, *models.Command, error) {
	device, err := s.devices.ByID(ctx, deviceID)
	if err != nil {
		return nil, nil, err
	}
	if !device.IsActive {
		return nil, nil, servicecore.Invalid("device", "device inactive")
	}

	if req.Path == "" {
		req.Path = defaultScanRoot
	}

	now := s.now()
	session := &models.ScanSession{
		ScanID:      uuid.NewString(),
		DeviceID:    device.ID,
		Status:      models.ScanPending,
		RequestedAt: &now,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, nil, err
	}

	params := req.ListFilesParams
	params.ScanID = session.ScanID
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, nil, err
	}

	cmd, err := s.queue.Enqueue(ctx, device.ID, commands.EnqueueRequest{
		Type:       models.CommandListFiles,
		Params:     rawParams,
		Priority:   req.Priority,
		ExpiresIn:  req.ExpiresIn,
		RequireAck: req.RequireAck,
	})
	if err != nil {
		session.Status = models.ScanFailed
		session.ErrorMessage = "command rejected: " + err.Error()
		if saveErr := s.repo.Save(ctx, session); saveErr != nil {
			s.log.Error("failed to mark rejected scan", "scan_id", session.ScanID, "error", saveErr)
		}
		return nil, nil, err
	}

	session.Status = models.ScanScanning
	session.CommandID = cmd.CommandID
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, nil, err
	}
	s.log.Info("file list requested",
		"scan_id", session.ScanID, "command_id", cmd.CommandID, "android_id", device.AndroidID)
	return session, cmd, nil
}

// UploadRequest is a device's file-list upload for one scan.
type UploadRequest struct {
	ScanID    string `json:"scan_id"`
	AndroidID string `json:"android_id"`
	CommandID string `json:"command_id"`

	// Device-supplied epoch milliseconds; not checked against our clock.
	ScanStartedAt   *int64 `json:"scan_started_at"`
	ScanCompletedAt *int64 `json:"scan_completed_at"`
	DurationMS      *int64 `json:"duration_ms"`

	TotalFiles     *int64 `json:"total_files"`
	TotalSizeBytes *int64 `json:"total_size_bytes"`

	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Files        []FileInput `json:"files"`
}

// IngestResult tells the device what actually got stored, so it can detect
// truncation against its own count.
type IngestResult struct {
	ScanID         string `json:"scan_id"`
	Status         string `json:"status"`
	StoredCount    int64  `json:"stored_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
}

// Ingest validates, normalizes and bulk-persists one upload, replacing any
// prior file set for the scan id, then regenerates the stats cache. The file
// data is authoritative and atomic; the stats cache is best-effort.
func (s *Service) Ingest(ctx context.Context, req UploadRequest) (*IngestResult, error) {
	if req.ScanID == "" {
		return nil, servicecore.Invalid("scan_id", "is required")
	}
	if req.AndroidID == "" {
		return nil, servicecore.Invalid("android_id", "is required")
	}
	status := req.Status
	if status == "" {
		status = models.ScanCompleted
	}
	switch status {
	case models.ScanCompleted, models.ScanPartial, models.ScanFailed:
	default:
		return nil, servicecore.Invalid("status", "must be completed, partial or failed")
	}
	if len(req.Files) > MaxUploadFiles {
		return nil, servicecore.Invalid("files", "exceeds the maximum of %d entries", MaxUploadFiles)
	}

	device, err := s.devices.ByAndroidID(ctx, req.AndroidID)
	if err != nil {
		return nil, err
	}

	// Fail fast before any mutation.
	records, totalSize, err := normalizeFiles(req.Files)
	if err != nil {
		return nil, err
	}

	// Two uploads racing on the same scan id would interleave the
	// delete-then-insert; serialize so the later commit wins whole.
	unlock := s.locks.Lock(req.ScanID)
	defer unlock()

	session, err := s.repo.ByScanID(ctx, req.ScanID)
	switch {
	case err == servicecore.ErrNotFound:
		// Device-initiated scan without a prior server request.
		session = &models.ScanSession{
			ScanID:   req.ScanID,
			DeviceID: device.ID,
			Status:   models.ScanPending,
		}
		if err := s.repo.Create(ctx, session); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case session.DeviceID != device.ID:
		// A scan id is bound to one device; no cross-device overwrite.
		return nil, servicecore.ErrNotFound
	}

	applyUploadMetadata(session, &req, status, totalSize, s.now())

	stored, err := s.repo.ReplaceFiles(ctx, session, records)
	if err != nil {
		return nil, err
	}

	s.regenerateStats(ctx, session, records)
	s.acknowledgeCommand(ctx, device, session.CommandID)

	s.log.Info("scan ingested",
		"scan_id", session.ScanID, "android_id", device.AndroidID,
		"stored", stored, "declared", req.TotalFiles, "status", status)

	return &IngestResult{
		ScanID:         session.ScanID,
		Status:         session.Status,
		StoredCount:    stored,
		TotalSizeBytes: totalSize,
	}, nil
}

func applyUploadMetadata(session *models.ScanSession, req *UploadRequest, status string, totalSize int64, now time.Time) {
	if req.CommandID != "" {
		session.CommandID = req.CommandID
	}
	if req.ScanStartedAt != nil {
		t := time.UnixMilli(*req.ScanStartedAt)
		session.StartedAt = &t
	}
	if req.ScanCompletedAt != nil {
		t := time.UnixMilli(*req.ScanCompletedAt)
		session.CompletedAt = &t
	} else {
		session.CompletedAt = &now
	}
	session.DurationMS = req.DurationMS
	// The device's declared total is provisional; ReplaceFiles corrects
	// TotalFiles to the stored count.
	if req.TotalFiles != nil {
		session.TotalFiles = *req.TotalFiles
	}
	session.TotalSizeBytes = totalSize
	session.Status = status
	session.ErrorMessage = req.ErrorMessage
}

// regenerateStats rebuilds the cache row. Failures are logged and swallowed:
// the authoritative file data is already committed and the cache can be
// rebuilt on the next ingestion.
func (s *Service) regenerateStats(ctx context.Context, session *models.ScanSession, records []models.FileRecord) {
	acc := NewStatsAccumulator()
	for i := range records {
		acc.Add(&records[i])
	}
	stats, err := acc.Stats(session.ID)
	if err == nil {
		err = s.repo.WriteStats(ctx, stats)
	}
	if err != nil {
		s.log.Warn("stats regeneration failed, cache left absent",
			"scan_id", session.ScanID, "error", err)
	}
}

// acknowledgeCommand closes the originating list_files command: a results
// upload is the strongest receipt the device can give.
func (s *Service) acknowledgeCommand(ctx context.Context, device *models.Device, commandID string) {
	if commandID == "" {
		return
	}
	if _, err := s.queue.Acknowledge(ctx, device, commandID); err != nil {
		s.log.Warn("could not acknowledge command after upload",
			"command_id", commandID, "error", err)
	}
}

// Cancel is the admin abort; only non-terminal sessions can be cancelled.
func (s *Service) Cancel(ctx context.Context, scanID string) (*models.ScanSession, error) {
	session, err := s.repo.ByScanID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.ScanPending, models.ScanScanning:
	default:
		return nil, servicecore.Invalid("status", "cannot cancel a %s scan", session.Status)
	}
	now := s.now()
	session.Status = models.ScanCancelled
	session.CompletedAt = &now
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Prune keeps the most recent keep sessions for a device (default 5) and
// cascades the rest away with their files and stats.
func (s *Service) Prune(ctx context.Context, deviceID uint, keep int) (int64, error) {
	if keep <= 0 {
		keep = DefaultKeepScans
	}
	if _, err := s.devices.ByID(ctx, deviceID); err != nil {
		return 0, err
	}
	removed, err := s.repo.Prune(ctx, deviceID, keep)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info("pruned old scans", "device_id", deviceID, "removed", removed, "kept", keep)
	}
	return removed, nil
}

// ReconcileAbandoned fails sessions stuck in scanning after their command
// expired. A device that never answers is a valid, silent outcome; this sweep
// is what surfaces it. Driven by the maintenance endpoint.
func (s *Service) ReconcileAbandoned(ctx context.Context) (int64, error) {
	n, err := s.repo.MarkAbandoned(ctx, s.now(), "scan abandoned: command expired before results arrived")
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("reconciled abandoned scans", "count", n)
	}
	return n, nil
}
