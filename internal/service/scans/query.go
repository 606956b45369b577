package scans

import (
	"context"
	"strings"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/repositories"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"github.com/samber/lo"
)

// Search limits. The scan scope is a deliberate cost bound: search reads the
// most recent completed scans instead of the whole file table.
const (
	DefaultSearchScanScope = 50
	DefaultSearchLimit     = 100
	MaxSearchLimit         = 1000

	sampleFilesPerType    = 5
	topFilesInReport      = 20
	topExtensionsInReport = 30
	topFoldersInReport    = 20
)

// ScanPage is one page of a device's scan history.
type ScanPage struct {
	Scans  []models.ScanSession `json:"scans"`
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// FileSample is the compact file view used in scan detail.
type FileSample struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Extension string `json:"extension"`
	IsHidden  bool   `json:"is_hidden"`
}

// ScanDetail is one session with its per-type breakdown and grouped samples.
type ScanDetail struct {
	Session       models.ScanSession        `json:"scan"`
	TypeStats     []repositories.TypeBucket `json:"type_stats"`
	SamplesByType map[string][]FileSample   `json:"samples_by_type"`
	CachedStats   *models.ScanStats         `json:"cached_stats,omitempty"`
}

// StatsReport is the rich ad-hoc report, computed from the file rows rather
// than the cache so any scan id can be inspected.
type StatsReport struct {
	Session       models.ScanSession          `json:"scan"`
	TypeStats     []repositories.TypeBucket   `json:"type_stats"`
	TopFiles      []FileSample                `json:"top_files"`
	TopExtensions []repositories.NameCount    `json:"top_extensions"`
	TopFolders    []repositories.FolderBucket `json:"top_folders"`
	Flags         repositories.FlagCounts     `json:"flags"`
}

// SearchRequest is the global/device file search. Filters are independently
// optional and compose with AND.
type SearchRequest struct {
	DeviceID   *uint
	Query      string
	FileType   string
	Extension  string
	MinSize    *int64
	MaxSize    *int64
	HiddenOnly bool
	Limit      int
	ScanScope  int
}

// List pages through a device's sessions, newest first.
func (s *Service) List(ctx context.Context, deviceID uint, limit, offset int) (*ScanPage, error) {
	if _, err := s.devices.ByID(ctx, deviceID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	sessions, total, err := s.repo.ListByDevice(ctx, deviceID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ScanPage{Scans: sessions, Total: total, Limit: limit, Offset: offset}, nil
}

// Detail returns one scan with per-type stats and sampled files per type.
func (s *Service) Detail(ctx context.Context, deviceID uint, scanID string) (*ScanDetail, error) {
	session, err := s.sessionForDevice(ctx, deviceID, scanID)
	if err != nil {
		return nil, err
	}
	buckets, err := s.repo.TypeBreakdown(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	samples := make(map[string][]FileSample, len(buckets))
	for _, b := range buckets {
		files, err := s.repo.SamplesByType(ctx, session.ID, b.FileType, sampleFilesPerType)
		if err != nil {
			return nil, err
		}
		samples[b.FileType] = toSamples(files)
	}
	detail := &ScanDetail{Session: *session, TypeStats: buckets, SamplesByType: samples}
	if cached, err := s.repo.StatsFor(ctx, session.ID); err == nil {
		detail.CachedStats = cached
	}
	return detail, nil
}

// Report builds the rich statistics report. With an empty scanID it falls
// back to the device's latest completed scan.
func (s *Service) Report(ctx context.Context, deviceID uint, scanID string) (*StatsReport, error) {
	var session *models.ScanSession
	var err error
	if scanID == "" {
		session, err = s.repo.LatestCompleted(ctx, deviceID)
	} else {
		session, err = s.sessionForDevice(ctx, deviceID, scanID)
	}
	if err != nil {
		return nil, err
	}

	report := &StatsReport{Session: *session}
	if report.TypeStats, err = s.repo.TypeBreakdown(ctx, session.ID); err != nil {
		return nil, err
	}
	topFiles, err := s.repo.TopFilesBySize(ctx, session.ID, topFilesInReport)
	if err != nil {
		return nil, err
	}
	report.TopFiles = toSamples(topFiles)
	if report.TopExtensions, err = s.repo.TopExtensions(ctx, session.ID, topExtensionsInReport); err != nil {
		return nil, err
	}
	if report.TopFolders, err = s.repo.TopFolders(ctx, session.ID, topFoldersInReport); err != nil {
		return nil, err
	}
	flags, err := s.repo.FlagCounts(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	report.Flags = *flags
	return report, nil
}

// Search scans the most recent completed sessions (fleet-wide or one device)
// for matching files, biggest first.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]repositories.FileSearchResult, error) {
	if req.Limit == 0 {
		req.Limit = DefaultSearchLimit
	}
	if req.Limit < 0 || req.Limit > MaxSearchLimit {
		return nil, servicecore.Invalid("limit", "must be between 1 and %d", MaxSearchLimit)
	}
	if req.ScanScope <= 0 {
		req.ScanScope = DefaultSearchScanScope
	}
	if req.MinSize != nil && *req.MinSize < 0 {
		return nil, servicecore.Invalid("min_size", "must not be negative")
	}
	if req.MaxSize != nil && *req.MaxSize < 0 {
		return nil, servicecore.Invalid("max_size", "must not be negative")
	}
	if req.FileType != "" && !validFileType(req.FileType) {
		return nil, servicecore.Invalid("file_type", "unknown file type %q", req.FileType)
	}
	req.Extension = strings.ToLower(strings.TrimPrefix(req.Extension, "."))

	ids, err := s.repo.RecentCompletedIDs(ctx, req.DeviceID, req.ScanScope)
	if err != nil {
		return nil, err
	}
	return s.repo.SearchFiles(ctx, ids, repositories.FileSearchFilter{
		Query:      req.Query,
		FileType:   req.FileType,
		Extension:  req.Extension,
		MinSize:    req.MinSize,
		MaxSize:    req.MaxSize,
		HiddenOnly: req.HiddenOnly,
		Limit:      req.Limit,
	})
}

func (s *Service) sessionForDevice(ctx context.Context, deviceID uint, scanID string) (*models.ScanSession, error) {
	session, err := s.repo.ByScanID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if session.DeviceID != deviceID {
		return nil, servicecore.ErrNotFound
	}
	return session, nil
}

func toSamples(files []models.FileRecord) []FileSample {
	return lo.Map(files, func(f models.FileRecord, _ int) FileSample {
		return FileSample{
			Name:      f.Name,
			Path:      f.Path,
			SizeBytes: f.SizeBytes,
			Extension: f.Extension,
			IsHidden:  f.IsHidden,
		}
	})
}

func validFileType(t string) bool {
	switch t {
	case models.FileTypeImage, models.FileTypeVideo, models.FileTypeAudio,
		models.FileTypeDocument, models.FileTypeAPK, models.FileTypeArchive,
		models.FileTypeDatabase, models.FileTypeLog, models.FileTypeTemporary,
		models.FileTypeSystem, models.FileTypeOther:
		return true
	}
	return false
}
