// Package devices implements identity and liveness tracking for the fleet.
package devices

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/repositories"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"github.com/lbaudin/androfleet/internal/utils"
)

// Attributes carries the optional descriptor set a device may report on
// registration. Nil fields leave the stored value untouched.
type Attributes struct {
	Model            *string  `json:"model"`
	Manufacturer     *string  `json:"manufacturer"`
	AndroidVersion   *string  `json:"android_version"`
	Brand            *string  `json:"brand"`
	Hardware         *string  `json:"hardware"`
	SocModel         *string  `json:"soc_model"`
	SupportedABIs    *string  `json:"supported_abis"`
	Board            *string  `json:"board"`
	Product          *string  `json:"product"`
	DeviceCode       *string  `json:"device_code"`
	SDKLevel         *int     `json:"sdk_level"`
	BuildID          *string  `json:"build_id"`
	BuildFingerprint *string  `json:"build_fingerprint"`
	SecurityPatch    *string  `json:"security_patch"`
	TotalRAM         *int     `json:"total_ram"`
	TotalStorage     *int     `json:"total_storage"`
	AvailableStorage *int     `json:"available_storage"`
	ScreenWidth      *int     `json:"screen_width"`
	ScreenHeight     *int     `json:"screen_height"`
	ScreenDensity    *int     `json:"screen_density"`
	BatteryCapacity  *int     `json:"battery_capacity"`
	BatteryLevel     *int     `json:"battery_level"`
	IsCharging       *bool    `json:"is_charging"`
	SimOperator      *string  `json:"sim_operator"`
	SimCountry       *string  `json:"sim_country"`
	NetworkOperator  *string  `json:"network_operator"`
	NetworkType      *string  `json:"network_type"`
	IsRoaming        *bool    `json:"is_roaming"`
	IsDualSim        *bool    `json:"is_dual_sim"`
	Language         *string  `json:"language"`
	Country          *string  `json:"country"`
	Timezone         *string  `json:"timezone"`
	IsRootedScore    *float64 `json:"is_rooted_score"`
	IsDebuggable     *bool    `json:"is_debuggable"`
	IsEmulator       *bool    `json:"is_emulator"`
	AppVersion       *string  `json:"app_version"`
	AppBuildNumber   *string  `json:"app_build_number"`
}

// Heartbeat is the periodic device state report. Absent fields must not
// overwrite stored values.
type Heartbeat struct {
	BatteryLevel     *int    `json:"battery_level" validate:"omitempty,min=0,max=100"`
	IsCharging       *bool   `json:"is_charging"`
	AvailableStorage *int    `json:"available_storage"`
	NetworkType      *string `json:"network_type"`
	IsRoaming        *bool   `json:"is_roaming"`
}

// Registry owns device identity and the per-device server key.
type Registry struct {
	repo repositories.DeviceRepository
	log  *slog.Logger
	now  func() time.Time
}

func NewRegistry(repo repositories.DeviceRepository, log *slog.Logger) *Registry {
	return &Registry{repo: repo, log: log, now: time.Now}
}

// Register upserts by android id. An existing device gets its attributes
// updated but keeps its key: the key is the trust anchor the phone expects to
// stay stable across profile updates.
func (s *Registry) Register(ctx context.Context, androidID string, attrs Attributes) (*models.Device, bool, error) {
	androidID = strings.TrimSpace(androidID)
	if androidID == "" {
		return nil, false, servicecore.Invalid("androidId", "is required")
	}

	device, err := s.repo.ByAndroidID(ctx, androidID)
	switch {
	case err == nil:
		applyAttributes(device, attrs)
		device.LastSeen = s.now()
		if err := s.repo.Save(ctx, device); err != nil {
			return nil, false, err
		}
		return device, false, nil

	case err == servicecore.ErrNotFound:
		key, kerr := utils.GenerateDeviceKey(androidID)
		if kerr != nil {
			return nil, false, kerr
		}
		device = &models.Device{
			AndroidID:      androidID,
			DeviceKey:      key,
			AndroidVersion: "unknown",
			IsActive:       true,
			LastSeen:       s.now(),
		}
		applyAttributes(device, attrs)
		if err := s.repo.Create(ctx, device); err != nil {
			return nil, false, err
		}
		s.log.Info("device registered", "android_id", androidID, "device_id", device.ID)
		return device, true, nil

	default:
		return nil, false, err
	}
}

// RecordHeartbeat updates liveness and whatever state fields the device chose
// to include. Unknown devices must register first.
func (s *Registry) RecordHeartbeat(ctx context.Context, androidID string, hb Heartbeat) (time.Time, error) {
	androidID = strings.TrimSpace(androidID)
	if androidID == "" {
		return time.Time{}, servicecore.Invalid("androidId", "is required")
	}
	device, err := s.repo.ByAndroidID(ctx, androidID)
	if err != nil {
		return time.Time{}, err
	}

	now := s.now()
	device.LastSeen = now
	device.IsActive = true
	if hb.BatteryLevel != nil {
		device.BatteryLevel = hb.BatteryLevel
	}
	if hb.IsCharging != nil {
		device.IsCharging = *hb.IsCharging
	}
	if hb.AvailableStorage != nil {
		device.AvailableStorage = hb.AvailableStorage
	}
	if hb.NetworkType != nil && *hb.NetworkType != "" {
		device.NetworkType = *hb.NetworkType
	}
	if hb.IsRoaming != nil {
		device.IsRoaming = *hb.IsRoaming
	}
	if err := s.repo.Save(ctx, device); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// RegenerateKey rotates the device key. The save invalidates the old key in
// the same write that makes the new one authoritative; delivering the new key
// to the phone is the caller's problem.
func (s *Registry) RegenerateKey(ctx context.Context, deviceID uint) (oldKey, newKey string, err error) {
	device, err := s.repo.ByID(ctx, deviceID)
	if err != nil {
		return "", "", err
	}
	newKey, err = utils.GenerateDeviceKey(device.AndroidID)
	if err != nil {
		return "", "", err
	}
	oldKey = device.DeviceKey
	device.DeviceKey = newKey
	if err := s.repo.Save(ctx, device); err != nil {
		return "", "", err
	}
	s.log.Info("device key regenerated", "device_id", deviceID)
	return oldKey, newKey, nil
}

// SetActive toggles a device; activating also refreshes liveness.
func (s *Registry) SetActive(ctx context.Context, deviceID uint, active bool) (*models.Device, error) {
	device, err := s.repo.ByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	device.IsActive = active
	if active {
		device.LastSeen = s.now()
	}
	if err := s.repo.Save(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// Authenticate checks a device-presented key. Used by the command polling
// endpoints, where the phone proves it holds the current server key.
func (s *Registry) Authenticate(ctx context.Context, androidID, deviceKey string) (*models.Device, error) {
	device, err := s.repo.ByAndroidID(ctx, androidID)
	if err != nil {
		return nil, err
	}
	if deviceKey == "" || device.DeviceKey != deviceKey {
		return nil, servicecore.ErrInvalidCredentials
	}
	return device, nil
}

// Get fetches one device by primary key.
func (s *Registry) Get(ctx context.Context, deviceID uint) (*models.Device, error) {
	return s.repo.ByID(ctx, deviceID)
}

// List returns devices matching the filter, newest activity first.
func (s *Registry) List(ctx context.Context, f repositories.DeviceFilter) ([]models.Device, int64, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// Search matches q against identity and model descriptors, capped at 20 hits.
func (s *Registry) Search(ctx context.Context, q string) ([]models.Device, error) {
	q = strings.TrimSpace(q)
	if len(q) < 2 {
		return nil, servicecore.Invalid("q", "must be at least 2 characters")
	}
	return s.repo.Search(ctx, q, 20)
}

// FleetStats returns the fleet-wide summary.
func (s *Registry) FleetStats(ctx context.Context) (*repositories.FleetStats, error) {
	return s.repo.FleetStats(ctx)
}

func applyAttributes(d *models.Device, a Attributes) {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&d.Model, a.Model)
	setStr(&d.Manufacturer, a.Manufacturer)
	setStr(&d.AndroidVersion, a.AndroidVersion)
	setStr(&d.Brand, a.Brand)
	setStr(&d.Hardware, a.Hardware)
	setStr(&d.SocModel, a.SocModel)
	setStr(&d.SupportedABIs, a.SupportedABIs)
	setStr(&d.Board, a.Board)
	setStr(&d.Product, a.Product)
	setStr(&d.DeviceCode, a.DeviceCode)
	setStr(&d.BuildID, a.BuildID)
	setStr(&d.BuildFingerprint, a.BuildFingerprint)
	setStr(&d.SecurityPatch, a.SecurityPatch)
	setStr(&d.SimOperator, a.SimOperator)
	setStr(&d.SimCountry, a.SimCountry)
	setStr(&d.NetworkOperator, a.NetworkOperator)
	setStr(&d.NetworkType, a.NetworkType)
	setStr(&d.Language, a.Language)
	setStr(&d.Country, a.Country)
	setStr(&d.Timezone, a.Timezone)
	setStr(&d.AppVersion, a.AppVersion)
	setStr(&d.AppBuildNumber, a.AppBuildNumber)

	if a.SDKLevel != nil {
		d.SDKLevel = a.SDKLevel
	}
	if a.TotalRAM != nil {
		d.TotalRAM = a.TotalRAM
	}
	if a.TotalStorage != nil {
		d.TotalStorage = a.TotalStorage
	}
	if a.AvailableStorage != nil {
		d.AvailableStorage = a.AvailableStorage
	}
	if a.ScreenWidth != nil {
		d.ScreenWidth = a.ScreenWidth
	}
	if a.ScreenHeight != nil {
		d.ScreenHeight = a.ScreenHeight
	}
	if a.ScreenDensity != nil {
		d.ScreenDensity = a.ScreenDensity
	}
	if a.BatteryCapacity != nil {
		d.BatteryCapacity = a.BatteryCapacity
	}
	if a.BatteryLevel != nil {
		d.BatteryLevel = a.BatteryLevel
	}
	if a.IsCharging != nil {
		d.IsCharging = *a.IsCharging
	}
	if a.IsRoaming != nil {
		d.IsRoaming = *a.IsRoaming
	}
	if a.IsDualSim != nil {
		d.IsDualSim = *a.IsDualSim
	}
	if a.IsRootedScore != nil {
		d.IsRootedScore = a.IsRootedScore
	}
	if a.IsDebuggable != nil {
		d.IsDebuggable = *a.IsDebuggable
	}
	if a.IsEmulator != nil {
		d.IsEmulator = *a.IsEmulator
	}
}
