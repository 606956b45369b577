package repositories

import (
	"context"
	"errors"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminUserRepository backs admin login and the provision command.
type AdminUserRepository interface {
	ByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	Upsert(ctx context.Context, u *models.AdminUser) error
}

type adminUserRepo struct {
	db *gorm.DB
}

func NewAdminUserRepository(db *gorm.DB) AdminUserRepository {
	return &adminUserRepo{db: db}
}

func (r *adminUserRepo) ByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	var u models.AdminUser
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, servicecore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Upsert keeps provisioning idempotent: re-running it rotates the password
// hash instead of failing on the unique username.
func (r *adminUserRepo) Upsert(ctx context.Context, u *models.AdminUser) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "updated_at"}),
	}).Create(u).Error
}
