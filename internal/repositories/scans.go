package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"gorm.io/gorm"
)

// ingestBatchSize bounds the rows per INSERT during bulk ingestion. Uploads
// run to hundreds of thousands of rows; per-row round trips would not keep up.
const ingestBatchSize = 1000

// TypeBucket is a per-file-type count/size aggregate row.
type TypeBucket struct {
	FileType string `json:"file_type"`
	Count    int64  `json:"count"`
	Size     int64  `json:"size"`
}

// FolderBucket is a per-folder count/size aggregate row.
type FolderBucket struct {
	ParentPath string `json:"parent_path"`
	Count      int64  `json:"count"`
	Size       int64  `json:"size"`
}

// FlagCounts carries the hidden/directory aggregate of one scan.
type FlagCounts struct {
	HiddenCount    int64 `json:"hidden_count"`
	HiddenSize     int64 `json:"hidden_size"`
	DirectoryCount int64 `json:"directory_count"`
}

// FileSearchFilter composes independently optional filters with AND semantics.
type FileSearchFilter struct {
	Query      string
	FileType   string
	Extension  string
	MinSize    *int64
	MaxSize    *int64
	HiddenOnly bool
	Limit      int
}

// FileSearchResult is one search hit with its device and scan context.
type FileSearchResult struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	FileType  string `json:"file_type"`
	Extension string `json:"extension"`
	IsHidden  bool   `json:"is_hidden"`
	ScanID    string `json:"scan_id"`
	AndroidID string `json:"android_id"`
	Model     string `json:"device_model"`
}

// ScanRepository is the persistence surface for scan sessions, their file
// records and the cached stats row.
type ScanRepository interface {
	ByScanID(ctx context.Context, scanID string) (*models.ScanSession, error)
	Create(ctx context.Context, s *models.ScanSession) error
	Save(ctx context.Context, s *models.ScanSession) error
	ListByDevice(ctx context.Context, deviceID uint, limit, offset int) ([]models.ScanSession, int64, error)
	LatestCompleted(ctx context.Context, deviceID uint) (*models.ScanSession, error)
	RecentCompletedIDs(ctx context.Context, deviceID *uint, n int) ([]uint, error)

	// ReplaceFiles atomically persists one upload: the session row, a
	// delete of any prior file set for the scan, and the new set in
	// batches. Returns the count actually stored.
	ReplaceFiles(ctx context.Context, session *models.ScanSession, files []models.FileRecord) (int64, error)

	WriteStats(ctx context.Context, stats *models.ScanStats) error
	StatsFor(ctx context.Context, sessionID uint) (*models.ScanStats, error)

	TypeBreakdown(ctx context.Context, sessionID uint) ([]TypeBucket, error)
	SamplesByType(ctx context.Context, sessionID uint, fileType string, limit int) ([]models.FileRecord, error)
	TopFilesBySize(ctx context.Context, sessionID uint, n int) ([]models.FileRecord, error)
	TopExtensions(ctx context.Context, sessionID uint, n int) ([]NameCount, error)
	TopFolders(ctx context.Context, sessionID uint, n int) ([]FolderBucket, error)
	FlagCounts(ctx context.Context, sessionID uint) (*FlagCounts, error)
	SearchFiles(ctx context.Context, sessionIDs []uint, f FileSearchFilter) ([]FileSearchResult, error)

	Prune(ctx context.Context, deviceID uint, keep int) (int64, error)
	MarkAbandoned(ctx context.Context, now time.Time, reason string) (int64, error)
}

type scanRepo struct {
	db *gorm.DB
}

// NewScanRepository returns the gorm-backed ScanRepository.
func NewScanRepository(db *gorm.DB) ScanRepository {
	return &scanRepo{db: db}
}

func (r *scanRepo) ByScanID(ctx context.Context, scanID string) (*models.ScanSession, error) {
	var s models.ScanSession
	err := r.db.WithContext(ctx).Where("scan_id = ?", scanID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, servicecore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scanRepo) Create(ctx context.Context, s *models.ScanSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *scanRepo) Save(ctx context.Context, s *models.ScanSession) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *scanRepo) ListByDevice(ctx context.Context, deviceID uint, limit, offset int) ([]models.ScanSession, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ScanSession{}).Where("device_id = ?", deviceID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var sessions []models.ScanSession
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&sessions).Error
	return sessions, total, err
}

func (r *scanRepo) LatestCompleted(ctx context.Context, deviceID uint) (*models.ScanSession, error) {
	var s models.ScanSession
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND status = ?", deviceID, models.ScanCompleted).
		Order("created_at DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, servicecore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scanRepo) RecentCompletedIDs(ctx context.Context, deviceID *uint, n int) ([]uint, error) {
	q := r.db.WithContext(ctx).Model(&models.ScanSession{}).
		Where("status = ?", models.ScanCompleted)
	if deviceID != nil {
		q = q.Where("device_id = ?", *deviceID)
	}
	var ids []uint
	err := q.Order("created_at DESC").Limit(n).Pluck("id", &ids).Error
	return ids, err
}

func (r *scanRepo) ReplaceFiles(ctx context.Context, session *models.ScanSession, files []models.FileRecord) (int64, error) {
	var stored int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(session).Error; err != nil {
			return err
		}
		// The new upload is authoritative for this scan: no merge.
		if err := tx.Where("scan_session_id = ?", session.ID).
			Delete(&models.FileRecord{}).Error; err != nil {
			return err
		}
		for i := range files {
			files[i].ScanSessionID = session.ID
		}
		if len(files) > 0 {
			if err := tx.CreateInBatches(files, ingestBatchSize).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.FileRecord{}).
			Where("scan_session_id = ?", session.ID).
			Count(&stored).Error; err != nil {
			return err
		}
		// Trust storage, not the device's self-reported total.
		session.TotalFiles = stored
		return tx.Model(session).Update("total_files", stored).Error
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}

func (r *scanRepo) WriteStats(ctx context.Context, stats *models.ScanStats) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scan_session_id = ?", stats.ScanSessionID).
			Delete(&models.ScanStats{}).Error; err != nil {
			return err
		}
		return tx.Create(stats).Error
	})
}

func (r *scanRepo) StatsFor(ctx context.Context, sessionID uint) (*models.ScanStats, error) {
	var stats models.ScanStats
	err := r.db.WithContext(ctx).Where("scan_session_id = ?", sessionID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, servicecore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *scanRepo) TypeBreakdown(ctx context.Context, sessionID uint) ([]TypeBucket, error) {
	var buckets []TypeBucket
	err := r.db.WithContext(ctx).Model(&models.FileRecord{}).
		Select("file_type, COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS size").
		Where("scan_session_id = ?", sessionID).
		Group("file_type").
		Order("size DESC").
		Scan(&buckets).Error
	return buckets, err
}

func (r *scanRepo) SamplesByType(ctx context.Context, sessionID uint, fileType string, limit int) ([]models.FileRecord, error) {
	var files []models.FileRecord
	err := r.db.WithContext(ctx).
		Where("scan_session_id = ? AND file_type = ?", sessionID, fileType).
		Order("size_bytes DESC").
		Limit(limit).
		Find(&files).Error
	return files, err
}

func (r *scanRepo) TopFilesBySize(ctx context.Context, sessionID uint, n int) ([]models.FileRecord, error) {
	var files []models.FileRecord
	err := r.db.WithContext(ctx).
		Where("scan_session_id = ?", sessionID).
		Order("size_bytes DESC, id ASC").
		Limit(n).
		Find(&files).Error
	return files, err
}

func (r *scanRepo) TopExtensions(ctx context.Context, sessionID uint, n int) ([]NameCount, error) {
	var out []NameCount
	err := r.db.WithContext(ctx).Model(&models.FileRecord{}).
		Select("extension AS name, COUNT(*) AS count").
		Where("scan_session_id = ? AND extension <> ''", sessionID).
		Group("extension").
		Order("count DESC").
		Limit(n).
		Scan(&out).Error
	return out, err
}

func (r *scanRepo) TopFolders(ctx context.Context, sessionID uint, n int) ([]FolderBucket, error) {
	var out []FolderBucket
	err := r.db.WithContext(ctx).Model(&models.FileRecord{}).
		Select("parent_path, COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS size").
		Where("scan_session_id = ? AND parent_path <> ''", sessionID).
		Group("parent_path").
		Order("size DESC").
		Limit(n).
		Scan(&out).Error
	return out, err
}

func (r *scanRepo) FlagCounts(ctx context.Context, sessionID uint) (*FlagCounts, error) {
	var out FlagCounts
	err := r.db.WithContext(ctx).Model(&models.FileRecord{}).
		Select(
			"COALESCE(SUM(CASE WHEN is_hidden THEN 1 ELSE 0 END), 0) AS hidden_count, "+
				"COALESCE(SUM(CASE WHEN is_hidden THEN size_bytes ELSE 0 END), 0) AS hidden_size, "+
				"COALESCE(SUM(CASE WHEN is_directory THEN 1 ELSE 0 END), 0) AS directory_count").
		Where("scan_session_id = ?", sessionID).
		Scan(&out).Error
	return &out, err
}

func (r *scanRepo) SearchFiles(ctx context.Context, sessionIDs []uint, f FileSearchFilter) ([]FileSearchResult, error) {
	if len(sessionIDs) == 0 {
		return []FileSearchResult{}, nil
	}
	q := r.db.WithContext(ctx).Table("file_records").
		Select("file_records.name, file_records.path, file_records.size_bytes, "+
			"file_records.file_type, file_records.extension, file_records.is_hidden, "+
			"scan_sessions.scan_id, devices.android_id, devices.model").
		Joins("JOIN scan_sessions ON scan_sessions.id = file_records.scan_session_id").
		Joins("JOIN devices ON devices.id = scan_sessions.device_id").
		Where("file_records.scan_session_id IN ?", sessionIDs)

	if f.Query != "" {
		like := "%" + f.Query + "%"
		q = q.Where("file_records.name ILIKE ? OR file_records.path ILIKE ?", like, like)
	}
	if f.FileType != "" {
		q = q.Where("file_records.file_type = ?", f.FileType)
	}
	if f.Extension != "" {
		q = q.Where("file_records.extension = ?", f.Extension)
	}
	if f.MinSize != nil {
		q = q.Where("file_records.size_bytes >= ?", *f.MinSize)
	}
	if f.MaxSize != nil {
		q = q.Where("file_records.size_bytes <= ?", *f.MaxSize)
	}
	if f.HiddenOnly {
		q = q.Where("file_records.is_hidden")
	}

	var results []FileSearchResult
	err := q.Order("file_records.size_bytes DESC").Limit(f.Limit).Scan(&results).Error
	return results, err
}

func (r *scanRepo) Prune(ctx context.Context, deviceID uint, keep int) (int64, error) {
	keepIDs := r.db.Model(&models.ScanSession{}).
		Select("id").
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Limit(keep)

	// File records and stats go with the session via ON DELETE CASCADE.
	res := r.db.WithContext(ctx).
		Where("device_id = ? AND id NOT IN (?)", deviceID, keepIDs).
		Delete(&models.ScanSession{})
	return res.RowsAffected, res.Error
}

func (r *scanRepo) MarkAbandoned(ctx context.Context, now time.Time, reason string) (int64, error) {
	overdue := r.db.Model(&models.Command{}).
		Select("command_id").
		Where("expires_at IS NOT NULL AND expires_at <= ?", now)

	res := r.db.WithContext(ctx).Model(&models.ScanSession{}).
		Where("status = ? AND command_id IN (?)", models.ScanScanning, overdue).
		Updates(map[string]any{
			"status":        models.ScanFailed,
			"error_message": reason,
			"completed_at":  now,
		})
	return res.RowsAffected, res.Error
}
