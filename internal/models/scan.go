package models

import (
	"time"
)

// ScanSession statuses. Transitions are monotonic:
// pending -> scanning -> completed|partial|failed, with cancelled reachable
// from pending/scanning through an admin abort.
const (
	ScanPending   = "pending"
	ScanScanning  = "scanning"
	ScanCompleted = "completed"
	ScanPartial   = "partial"
	ScanFailed    = "failed"
	ScanCancelled = "cancelled"
)

// ScanSession is one file-inventory request/response cycle. ScanID doubles as
// the idempotency key for uploads: re-ingesting the same ScanID replaces the
// prior FileRecord set.
type ScanSession struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	ScanID   string `json:"scan_id" gorm:"size:64;uniqueIndex;not null"`
	DeviceID uint   `json:"device_id" gorm:"index;not null"`
	Device   Device `json:"-" gorm:"constraint:OnDelete:CASCADE"`

	Status    string `json:"status" gorm:"size:12;default:pending"`
	CommandID string `json:"command_id" gorm:"size:64;index"`

	RequestedAt *time.Time `json:"requested_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	// DurationMS is the device's self-declared scan duration.
	DurationMS *int64 `json:"duration_ms"`

	// TotalFiles is corrected to the actually-ingested row count after an
	// upload; the device's declared figure is not trusted.
	TotalFiles     int64  `json:"total_files" gorm:"default:0"`
	TotalSizeBytes int64  `json:"total_size_bytes" gorm:"default:0"`
	ErrorMessage   string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// FileRecord is one file or directory entry reported by a device for one
// scan. Timestamps are device-supplied epoch milliseconds and are not
// validated against the server clock.
type FileRecord struct {
	ID            uint        `json:"id" gorm:"primaryKey"`
	ScanSessionID uint        `json:"-" gorm:"index:idx_files_scan_type,priority:1;index:idx_files_scan_type_size,priority:1;not null"`
	ScanSession   ScanSession `json:"-" gorm:"constraint:OnDelete:CASCADE"`

	Path       string `json:"path" gorm:"size:1024;index;not null"`
	ParentPath string `json:"parent_path" gorm:"size:1024;index"`
	Name       string `json:"name" gorm:"size:255;index;not null"`
	Extension  string `json:"extension" gorm:"size:20;index"`
	SizeBytes  int64  `json:"size_bytes" gorm:"index:idx_files_scan_type_size,priority:3;default:0"`

	LastModified *int64 `json:"last_modified" gorm:"index"`
	LastAccessed *int64 `json:"last_accessed"`
	CreatedTime  *int64 `json:"created_time"`

	FileType string `json:"file_type" gorm:"size:15;index:idx_files_scan_type,priority:2;index:idx_files_scan_type_size,priority:2"`
	MimeType string `json:"mime_type" gorm:"size:100"`

	IsHidden    bool `json:"is_hidden" gorm:"index;default:false"`
	IsDirectory bool `json:"is_directory" gorm:"default:false"`
	IsReadable  bool `json:"is_readable" gorm:"default:true"`
	IsWritable  bool `json:"is_writable" gorm:"default:false"`

	MD5Hash    string `json:"md5_hash" gorm:"size:32"`
	SHA256Hash string `json:"sha256_hash" gorm:"size:64"`

	// Media metadata, present for images/videos only.
	Width      *int     `json:"width"`
	Height     *int     `json:"height"`
	DurationMS *int64   `json:"media_duration_ms"`
	GPSLat     *float64 `json:"gps_lat"`
	GPSLng     *float64 `json:"gps_lng"`

	// APK metadata.
	PackageName    string `json:"package_name" gorm:"size:255"`
	PackageVersion string `json:"package_version" gorm:"size:50"`
}

// File-type buckets derived from the extension when the device does not
// classify the file itself.
const (
	FileTypeImage     = "image"
	FileTypeVideo     = "video"
	FileTypeAudio     = "audio"
	FileTypeDocument  = "document"
	FileTypeAPK       = "apk"
	FileTypeArchive   = "archive"
	FileTypeDatabase  = "database"
	FileTypeLog       = "log"
	FileTypeTemporary = "temporary"
	FileTypeSystem    = "system"
	FileTypeOther     = "other"
)

// ScanStats is the cached per-scan aggregate. It is derived data: always
// recomputable from the scan's FileRecord set, deleted and regenerated after
// every (re-)ingestion, and never treated as a source of truth.
type ScanStats struct {
	ID            uint        `json:"id" gorm:"primaryKey"`
	ScanSessionID uint        `json:"-" gorm:"uniqueIndex;not null"`
	ScanSession   ScanSession `json:"-" gorm:"constraint:OnDelete:CASCADE"`

	ImageCount    int64 `json:"image_count" gorm:"default:0"`
	ImageSize     int64 `json:"image_size" gorm:"default:0"`
	VideoCount    int64 `json:"video_count" gorm:"default:0"`
	VideoSize     int64 `json:"video_size" gorm:"default:0"`
	AudioCount    int64 `json:"audio_count" gorm:"default:0"`
	AudioSize     int64 `json:"audio_size" gorm:"default:0"`
	DocumentCount int64 `json:"document_count" gorm:"default:0"`
	DocumentSize  int64 `json:"document_size" gorm:"default:0"`
	APKCount      int64 `json:"apk_count" gorm:"default:0"`
	APKSize       int64 `json:"apk_size" gorm:"default:0"`
	ArchiveCount  int64 `json:"archive_count" gorm:"default:0"`
	ArchiveSize   int64 `json:"archive_size" gorm:"default:0"`

	CameraCount    int64 `json:"camera_count" gorm:"default:0"`
	CameraSize     int64 `json:"camera_size" gorm:"default:0"`
	DownloadsCount int64 `json:"downloads_count" gorm:"default:0"`
	DownloadsSize  int64 `json:"downloads_size" gorm:"default:0"`
	WhatsappCount  int64 `json:"whatsapp_count" gorm:"default:0"`
	WhatsappSize   int64 `json:"whatsapp_size" gorm:"default:0"`

	HiddenCount int64 `json:"hidden_files_count" gorm:"default:0"`
	HiddenSize  int64 `json:"hidden_files_size" gorm:"default:0"`

	// LargestFiles is a JSON snapshot of the ten largest records
	// (name/path/size/type), largest first.
	LargestFiles string `json:"largest_files" gorm:"type:jsonb;default:'[]'"`

	GeneratedAt time.Time `json:"generated_at" gorm:"autoUpdateTime"`
}
