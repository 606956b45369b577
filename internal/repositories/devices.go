package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"gorm.io/gorm"
)

// DeviceFilter narrows ListDevices. Zero values mean "no filter".
type DeviceFilter struct {
	IsActive       *bool
	Manufacturer   string
	AndroidVersion string
	Model          string
	Last24h        bool
	Limit          int
	Offset         int
}

// NameCount is one bucket of a grouped count (top manufacturers, versions...).
type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// FleetStats is the fleet-wide device summary.
type FleetStats struct {
	TotalDevices     int64       `json:"total_devices"`
	ActiveDevices    int64       `json:"active_devices"`
	InactiveDevices  int64       `json:"inactive_devices"`
	SeenToday        int64       `json:"seen_today"`
	SeenThisWeek     int64       `json:"seen_this_week"`
	RootedDevices    int64       `json:"rooted_devices"`
	EmulatorCount    int64       `json:"emulator_count"`
	TopManufacturers []NameCount `json:"top_manufacturers"`
	TopVersions      []NameCount `json:"top_android_versions"`
	TopModels        []NameCount `json:"top_models"`
}

// DeviceRepository is the persistence surface the device registry needs.
type DeviceRepository interface {
	ByAndroidID(ctx context.Context, androidID string) (*models.Device, error)
	ByID(ctx context.Context, id uint) (*models.Device, error)
	Create(ctx context.Context, d *models.Device) error
	Save(ctx context.Context, d *models.Device) error
	List(ctx context.Context, f DeviceFilter) ([]models.Device, int64, error)
	Search(ctx context.Context, q string, limit int) ([]models.Device, error)
	FleetStats(ctx context.Context) (*FleetStats, error)
}

type deviceRepo struct {
	db *gorm.DB
}

// NewDeviceRepository returns the gorm-backed DeviceRepository.
func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) ByAndroidID(ctx context.Context, androidID string) (*models.Device, error) {
	var d models.Device
	err := r.db.WithContext(ctx).Where("android_id = ?", androidID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, servicecore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deviceRepo) ByID(ctx context.Context, id uint) (*models.Device, error) {
	var d models.Device
	err := r.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, servicecore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deviceRepo) Create(ctx context.Context, d *models.Device) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *deviceRepo) Save(ctx context.Context, d *models.Device) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *deviceRepo) List(ctx context.Context, f DeviceFilter) ([]models.Device, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Device{})
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	if f.Manufacturer != "" {
		q = q.Where("manufacturer ILIKE ?", "%"+f.Manufacturer+"%")
	}
	if f.AndroidVersion != "" {
		q = q.Where("android_version ILIKE ?", "%"+f.AndroidVersion+"%")
	}
	if f.Model != "" {
		q = q.Where("model ILIKE ?", "%"+f.Model+"%")
	}
	if f.Last24h {
		q = q.Where("last_seen >= ?", time.Now().Add(-24*time.Hour))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var devices []models.Device
	err := q.Order("last_seen DESC").Limit(f.Limit).Offset(f.Offset).Find(&devices).Error
	return devices, total, err
}

func (r *deviceRepo) Search(ctx context.Context, q string, limit int) ([]models.Device, error) {
	like := "%" + q + "%"
	var devices []models.Device
	err := r.db.WithContext(ctx).
		Where("android_id ILIKE ? OR model ILIKE ? OR manufacturer ILIKE ? OR brand ILIKE ? OR device_code ILIKE ?",
			like, like, like, like, like).
		Limit(limit).
		Find(&devices).Error
	return devices, err
}

func (r *deviceRepo) FleetStats(ctx context.Context) (*FleetStats, error) {
	db := r.db.WithContext(ctx)
	stats := &FleetStats{}

	model := func() *gorm.DB { return db.Model(&models.Device{}) }
	if err := model().Count(&stats.TotalDevices).Error; err != nil {
		return nil, err
	}
	if err := model().Where("is_active = ?", true).Count(&stats.ActiveDevices).Error; err != nil {
		return nil, err
	}
	stats.InactiveDevices = stats.TotalDevices - stats.ActiveDevices

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := model().Where("last_seen >= ?", startOfDay).Count(&stats.SeenToday).Error; err != nil {
		return nil, err
	}
	if err := model().Where("last_seen >= ?", now.AddDate(0, 0, -7)).Count(&stats.SeenThisWeek).Error; err != nil {
		return nil, err
	}
	if err := model().Where("is_rooted_score > ?", 0.5).Count(&stats.RootedDevices).Error; err != nil {
		return nil, err
	}
	if err := model().Where("is_emulator = ?", true).Count(&stats.EmulatorCount).Error; err != nil {
		return nil, err
	}

	top := func(column string, exclude string, out *[]NameCount) error {
		return model().
			Select(column+" AS name, COUNT(*) AS count").
			Where(column+" <> ?", exclude).
			Group(column).
			Order("count DESC").
			Limit(5).
			Scan(out).Error
	}
	if err := top("manufacturer", "", &stats.TopManufacturers); err != nil {
		return nil, err
	}
	if err := top("android_version", "unknown", &stats.TopVersions); err != nil {
		return nil, err
	}
	if err := top("model", "", &stats.TopModels); err != nil {
		return nil, err
	}
	return stats, nil
}
