package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"gorm.io/gorm"
)

// Pending ordering: critical first, then by age. Expired rows never show up.
const priorityOrder = "CASE priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END, created_at ASC"

// CommandRepository is the persistence surface of the command queue.
type CommandRepository interface {
	Create(ctx context.Context, c *models.Command) error
	ByCommandID(ctx context.Context, commandID string) (*models.Command, error)
	Save(ctx context.Context, c *models.Command) error
	PendingForDevice(ctx context.Context, deviceID uint) ([]models.Command, error)
	MarkSent(ctx context.Context, ids []uint, at time.Time) error
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type commandRepo struct {
	db *gorm.DB
}

// NewCommandRepository returns the gorm-backed CommandRepository.
func NewCommandRepository(db *gorm.DB) CommandRepository {
	return &commandRepo{db: db}
}

func (r *commandRepo) Create(ctx context.Context, c *models.Command) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *commandRepo) ByCommandID(ctx context.Context, commandID string) (*models.Command, error) {
	var c models.Command
	err := r.db.WithContext(ctx).Where("command_id = ?", commandID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, servicecore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commandRepo) Save(ctx context.Context, c *models.Command) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *commandRepo) PendingForDevice(ctx context.Context, deviceID uint) ([]models.Command, error) {
	var commands []models.Command
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Where("status IN ?", []string{models.CommandQueued, models.CommandSent}).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Order(priorityOrder).
		Find(&commands).Error
	return commands, err
}

func (r *commandRepo) MarkSent(ctx context.Context, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Command{}).
		Where("id IN ? AND status = ?", ids, models.CommandQueued).
		Updates(map[string]any{"status": models.CommandSent, "sent_at": at}).Error
}

func (r *commandRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Command{}).
		Where("status IN ?", []string{models.CommandQueued, models.CommandSent}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Update("status", models.CommandExpired)
	return res.RowsAffected, res.Error
}
