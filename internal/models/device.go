package models

import (
	"time"
)

// Device is one physical or emulated Android unit. AndroidID is the stable
// external identity; DeviceKey is the server-issued credential the phone uses
// to verify that commands really come from this server.
type Device struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	AndroidID string `json:"androidId" gorm:"column:android_id;size:100;uniqueIndex;not null"`
	DeviceKey string `json:"-" gorm:"size:64;uniqueIndex;not null"`

	// Base info
	Model          string `json:"model" gorm:"size:100"`
	Manufacturer   string `json:"manufacturer" gorm:"size:100"`
	AndroidVersion string `json:"android_version" gorm:"size:20;default:unknown"`
	Brand          string `json:"brand" gorm:"size:100"`

	// Hardware
	Hardware      string `json:"hardware" gorm:"size:100"`
	SocModel      string `json:"soc_model" gorm:"size:100"`
	SupportedABIs string `json:"supported_abis" gorm:"size:200"`
	Board         string `json:"board" gorm:"size:100"`
	Product       string `json:"product" gorm:"size:100"`
	DeviceCode    string `json:"device_code" gorm:"size:100"`

	// System build
	SDKLevel         *int   `json:"sdk_level"`
	BuildID          string `json:"build_id" gorm:"size:100"`
	BuildFingerprint string `json:"build_fingerprint" gorm:"size:255"`
	SecurityPatch    string `json:"security_patch" gorm:"size:20"`

	// Memory and storage (MB)
	TotalRAM         *int `json:"total_ram"`
	TotalStorage     *int `json:"total_storage"`
	AvailableStorage *int `json:"available_storage"`

	// Screen
	ScreenWidth   *int `json:"screen_width"`
	ScreenHeight  *int `json:"screen_height"`
	ScreenDensity *int `json:"screen_density"`

	// Battery
	BatteryCapacity *int `json:"battery_capacity"`
	BatteryLevel    *int `json:"battery_level"`
	IsCharging      bool `json:"is_charging" gorm:"default:false"`

	// Network and telephony
	SimOperator     string `json:"sim_operator" gorm:"size:50"`
	SimCountry      string `json:"sim_country" gorm:"size:10"`
	NetworkOperator string `json:"network_operator" gorm:"size:50"`
	NetworkType     string `json:"network_type" gorm:"size:20"`
	IsRoaming       bool   `json:"is_roaming" gorm:"default:false"`
	IsDualSim       bool   `json:"is_dual_sim" gorm:"default:false"`

	// Locale
	Language string `json:"language" gorm:"size:10"`
	Country  string `json:"country" gorm:"size:10"`
	Timezone string `json:"timezone" gorm:"size:50"`

	// Security posture
	IsRootedScore *float64 `json:"is_rooted_score"`
	IsDebuggable  bool     `json:"is_debuggable" gorm:"default:false"`
	IsEmulator    bool     `json:"is_emulator" gorm:"default:false"`

	// App info
	AppVersion     string `json:"app_version" gorm:"size:20"`
	AppBuildNumber string `json:"app_build_number" gorm:"size:20"`

	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	LastSeen  time.Time `json:"last_seen" gorm:"autoUpdateTime:false"`
}
