// Package commands is the per-device command queue: the authoritative record
// of what the server asked each device to do.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/repositories"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"github.com/samber/lo"
)

// Expiry bounds, in seconds (one minute to seven days).
const (
	minExpirySeconds = 60
	maxExpirySeconds = 7 * 24 * 3600
)

// EnqueueRequest is an admin's ask to send one command.
type EnqueueRequest struct {
	Type       string          `json:"command"`
	Params     json.RawMessage `json:"params"`
	Priority   string          `json:"priority"`
	ExpiresIn  *int            `json:"expires_in"`
	RequireAck *bool           `json:"require_ack"`
}

// Queue owns command lifecycle: enqueue, poll, acknowledge, expire.
type Queue struct {
	repo      repositories.CommandRepository
	devices   repositories.DeviceRepository
	transport Transport
	log       *slog.Logger
	now       func() time.Time
}

func NewQueue(repo repositories.CommandRepository, devices repositories.DeviceRepository, transport Transport, log *slog.Logger) *Queue {
	return &Queue{repo: repo, devices: devices, transport: transport, log: log, now: time.Now}
}

// Enqueue validates and persists one command for a device. The commit never
// waits on delivery; the transport is invoked asynchronously afterwards.
func (q *Queue) Enqueue(ctx context.Context, deviceID uint, req EnqueueRequest) (*models.Command, error) {
	device, err := q.devices.ByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if !device.IsActive {
		return nil, servicecore.Invalid("device", "device inactive")
	}

	if !ValidCommandType(req.Type) {
		return nil, servicecore.Invalid("command", "unknown command type %q", req.Type)
	}
	params, err := ValidateParams(req.Type, req.Params)
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	switch priority {
	case models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityCritical:
	default:
		return nil, servicecore.Invalid("priority", "unknown priority %q", priority)
	}

	now := q.now()
	var expiresAt *time.Time
	if req.ExpiresIn != nil {
		if *req.ExpiresIn < minExpirySeconds || *req.ExpiresIn > maxExpirySeconds {
			return nil, servicecore.Invalid("expires_in", "must be between %d and %d seconds", minExpirySeconds, maxExpirySeconds)
		}
		t := now.Add(time.Duration(*req.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	cmd := &models.Command{
		CommandID:  fmt.Sprintf("cmd_%d_%d", device.ID, now.UnixMilli()),
		DeviceID:   device.ID,
		Type:       req.Type,
		Params:     params,
		Priority:   priority,
		Status:     models.CommandQueued,
		RequireAck: req.RequireAck == nil || *req.RequireAck,
		ExpiresAt:  expiresAt,
	}
	if err := q.repo.Create(ctx, cmd); err != nil {
		return nil, err
	}

	go func(device models.Device, cmd models.Command) {
		if err := q.transport.Deliver(context.WithoutCancel(ctx), &device, &cmd); err != nil {
			q.log.Warn("command delivery failed, left queued for polling",
				"command_id", cmd.CommandID, "error", err)
		}
	}(*device, *cmd)

	return cmd, nil
}

// Pending lists not-yet-acknowledged, non-expired commands for a device,
// priority-weighted then oldest first. Read-only: an admin inspecting the
// queue must not disturb delivery state.
func (q *Queue) Pending(ctx context.Context, deviceID uint) ([]models.Command, error) {
	if _, err := q.devices.ByID(ctx, deviceID); err != nil {
		return nil, err
	}
	return q.repo.PendingForDevice(ctx, deviceID)
}

// Poll is the device-facing read. Polling is non-destructive: commands stay
// visible until acknowledged or expired, but freshly seen ones move
// queued -> sent so operators can tell delivered from never-fetched.
func (q *Queue) Poll(ctx context.Context, device *models.Device) ([]models.Command, error) {
	pending, err := q.repo.PendingForDevice(ctx, device.ID)
	if err != nil {
		return nil, err
	}
	fresh := lo.FilterMap(pending, func(c models.Command, _ int) (uint, bool) {
		return c.ID, c.Status == models.CommandQueued
	})
	if err := q.repo.MarkSent(ctx, fresh, q.now()); err != nil {
		return nil, err
	}
	return pending, nil
}

// Acknowledge records the device's receipt of one command.
func (q *Queue) Acknowledge(ctx context.Context, device *models.Device, commandID string) (*models.Command, error) {
	cmd, err := q.repo.ByCommandID(ctx, commandID)
	if err != nil {
		return nil, err
	}
	if cmd.DeviceID != device.ID {
		return nil, servicecore.ErrNotFound
	}
	if cmd.Status == models.CommandExpired {
		return nil, servicecore.Invalid("command_id", "command already expired")
	}
	now := q.now()
	cmd.Status = models.CommandAcknowledged
	cmd.AckedAt = &now
	if err := q.repo.Save(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// ExpireOverdue flips queued/sent commands past their expiry to expired.
// Driven by the maintenance endpoint, not a background loop.
func (q *Queue) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := q.repo.ExpireOverdue(ctx, q.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.log.Info("expired overdue commands", "count", n)
	}
	return n, nil
}
