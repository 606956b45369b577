package models

import (
	"time"
)

// Command types the server can send to a device.
const (
	CommandSync         = "sync"
	CommandUpdate       = "update"
	CommandReboot       = "reboot"
	CommandLocate       = "locate"
	CommandNotification = "notification"
	CommandBackup       = "backup"
	CommandWipe         = "wipe"
	CommandListFiles    = "list_files"
	CommandCustom       = "custom"
)

// Command priorities, highest first when polled.
const (
	PriorityLow      = "low"
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Command statuses.
const (
	CommandQueued       = "queued"
	CommandSent         = "sent"
	CommandAcknowledged = "acknowledged"
	CommandExpired      = "expired"
	CommandFailed       = "failed"
)

// Command is one server-to-device instruction. Params is a JSON object whose
// shape depends on Type; it is validated before the row is created.
type Command struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	CommandID  string     `json:"command_id" gorm:"size:64;uniqueIndex;not null"`
	DeviceID   uint       `json:"device_id" gorm:"index:idx_commands_device_status,priority:1;not null"`
	Device     Device     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Type       string     `json:"command" gorm:"size:20;not null"`
	Params     string     `json:"params" gorm:"type:jsonb;default:'{}'"`
	Priority   string     `json:"priority" gorm:"size:10;default:normal"`
	Status     string     `json:"status" gorm:"size:15;index:idx_commands_device_status,priority:2;default:queued"`
	RequireAck bool       `json:"require_ack" gorm:"default:true"`
	ExpiresAt  *time.Time `json:"expires_at"`
	SentAt     *time.Time `json:"sent_at"`
	AckedAt    *time.Time `json:"acked_at"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
}
