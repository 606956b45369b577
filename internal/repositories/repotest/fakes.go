// Package repotest provides in-memory implementations of the repository
// interfaces for service and handler tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/repositories"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
)

// FakeDeviceRepo is a map-backed DeviceRepository.
type FakeDeviceRepo struct {
	mu      sync.Mutex
	seq     uint
	Devices map[uint]*models.Device
}

func NewFakeDeviceRepo() *FakeDeviceRepo {
	return &FakeDeviceRepo{Devices: make(map[uint]*models.Device)}
}

func (f *FakeDeviceRepo) ByAndroidID(_ context.Context, androidID string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.Devices {
		if d.AndroidID == androidID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, servicecore.ErrNotFound
}

func (f *FakeDeviceRepo) ByID(_ context.Context, id uint) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.Devices[id]
	if !ok {
		return nil, servicecore.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *FakeDeviceRepo) Create(_ context.Context, d *models.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	d.ID = f.seq
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	cp := *d
	f.Devices[d.ID] = &cp
	return nil
}

func (f *FakeDeviceRepo) Save(_ context.Context, d *models.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	f.Devices[d.ID] = &cp
	return nil
}

func (f *FakeDeviceRepo) List(_ context.Context, filter repositories.DeviceFilter) ([]models.Device, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Device
	for _, d := range f.Devices {
		if filter.IsActive != nil && d.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	total := int64(len(out))
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (f *FakeDeviceRepo) Search(_ context.Context, q string, limit int) ([]models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Device
	for _, d := range f.Devices {
		if strings.Contains(d.AndroidID, q) || strings.Contains(d.Model, q) ||
			strings.Contains(d.Manufacturer, q) || strings.Contains(d.Brand, q) {
			out = append(out, *d)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeDeviceRepo) FleetStats(_ context.Context) (*repositories.FleetStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repositories.FleetStats{}
	for _, d := range f.Devices {
		stats.TotalDevices++
		if d.IsActive {
			stats.ActiveDevices++
		}
	}
	stats.InactiveDevices = stats.TotalDevices - stats.ActiveDevices
	return stats, nil
}

// FakeCommandRepo is a map-backed CommandRepository.
type FakeCommandRepo struct {
	mu       sync.Mutex
	seq      uint
	Commands []*models.Command
}

func NewFakeCommandRepo() *FakeCommandRepo {
	return &FakeCommandRepo{}
}

func (f *FakeCommandRepo) Create(_ context.Context, c *models.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c.ID = f.seq
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	cp := *c
	f.Commands = append(f.Commands, &cp)
	return nil
}

func (f *FakeCommandRepo) ByCommandID(_ context.Context, commandID string) (*models.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Commands {
		if c.CommandID == commandID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, servicecore.ErrNotFound
}

func (f *FakeCommandRepo) Save(_ context.Context, c *models.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.Commands {
		if existing.ID == c.ID {
			cp := *c
			f.Commands[i] = &cp
			return nil
		}
	}
	return servicecore.ErrNotFound
}

var priorityWeight = map[string]int{
	models.PriorityCritical: 0,
	models.PriorityHigh:     1,
	models.PriorityNormal:   2,
	models.PriorityLow:      3,
}

func (f *FakeCommandRepo) PendingForDevice(_ context.Context, deviceID uint) ([]models.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []models.Command
	for _, c := range f.Commands {
		if c.DeviceID != deviceID {
			continue
		}
		if c.Status != models.CommandQueued && c.Status != models.CommandSent {
			continue
		}
		if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
			continue
		}
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if priorityWeight[out[i].Priority] != priorityWeight[out[j].Priority] {
			return priorityWeight[out[i].Priority] < priorityWeight[out[j].Priority]
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f *FakeCommandRepo) MarkSent(_ context.Context, ids []uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		for _, c := range f.Commands {
			if c.ID == id && c.Status == models.CommandQueued {
				c.Status = models.CommandSent
				t := at
				c.SentAt = &t
			}
		}
	}
	return nil
}

func (f *FakeCommandRepo) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.Commands {
		if (c.Status == models.CommandQueued || c.Status == models.CommandSent) &&
			c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
			c.Status = models.CommandExpired
			n++
		}
	}
	return n, nil
}

// FakeScanRepo is a map-backed ScanRepository. It holds references to the
// device and command fakes for joins (search context, abandoned sweeps).
type FakeScanRepo struct {
	mu       sync.Mutex
	seq      uint
	Sessions []*models.ScanSession
	Files    map[uint][]models.FileRecord
	Stats    map[uint]*models.ScanStats

	Devices  *FakeDeviceRepo
	Commands *FakeCommandRepo

	// StatsWriteErr, when set, makes WriteStats fail.
	StatsWriteErr error
}

func NewFakeScanRepo(devices *FakeDeviceRepo, cmds *FakeCommandRepo) *FakeScanRepo {
	return &FakeScanRepo{
		Files:    make(map[uint][]models.FileRecord),
		Stats:    make(map[uint]*models.ScanStats),
		Devices:  devices,
		Commands: cmds,
	}
}

func (f *FakeScanRepo) ByScanID(_ context.Context, scanID string) (*models.ScanSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.Sessions {
		if s.ScanID == scanID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, servicecore.ErrNotFound
}

func (f *FakeScanRepo) Create(_ context.Context, s *models.ScanSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	s.ID = f.seq
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	cp := *s
	f.Sessions = append(f.Sessions, &cp)
	return nil
}

func (f *FakeScanRepo) Save(_ context.Context, s *models.ScanSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked(s)
}

func (f *FakeScanRepo) saveLocked(s *models.ScanSession) error {
	for i, existing := range f.Sessions {
		if existing.ID == s.ID {
			cp := *s
			f.Sessions[i] = &cp
			return nil
		}
	}
	return servicecore.ErrNotFound
}

func (f *FakeScanRepo) ListByDevice(_ context.Context, deviceID uint, limit, offset int) ([]models.ScanSession, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ScanSession
	for _, s := range f.Sessions {
		if s.DeviceID == deviceID {
			out = append(out, *s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *FakeScanRepo) LatestCompleted(_ context.Context, deviceID uint) (*models.ScanSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.ScanSession
	for _, s := range f.Sessions {
		if s.DeviceID == deviceID && s.Status == models.ScanCompleted {
			if latest == nil || s.ID > latest.ID {
				latest = s
			}
		}
	}
	if latest == nil {
		return nil, servicecore.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *FakeScanRepo) RecentCompletedIDs(_ context.Context, deviceID *uint, n int) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sessions []*models.ScanSession
	for _, s := range f.Sessions {
		if s.Status != models.ScanCompleted {
			continue
		}
		if deviceID != nil && s.DeviceID != *deviceID {
			continue
		}
		sessions = append(sessions, s)
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].ID > sessions[j].ID })
	if len(sessions) > n {
		sessions = sessions[:n]
	}
	ids := make([]uint, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids, nil
}

func (f *FakeScanRepo) ReplaceFiles(_ context.Context, session *models.ScanSession, files []models.FileRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session.ID == 0 {
		f.seq++
		session.ID = f.seq
		cp := *session
		f.Sessions = append(f.Sessions, &cp)
	}
	stored := make([]models.FileRecord, len(files))
	copy(stored, files)
	for i := range stored {
		stored[i].ID = uint(i + 1)
		stored[i].ScanSessionID = session.ID
	}
	f.Files[session.ID] = stored
	session.TotalFiles = int64(len(stored))
	return int64(len(stored)), f.saveLocked(session)
}

func (f *FakeScanRepo) WriteStats(_ context.Context, stats *models.ScanStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatsWriteErr != nil {
		return f.StatsWriteErr
	}
	cp := *stats
	f.Stats[stats.ScanSessionID] = &cp
	return nil
}

func (f *FakeScanRepo) StatsFor(_ context.Context, sessionID uint) (*models.ScanStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats, ok := f.Stats[sessionID]
	if !ok {
		return nil, servicecore.ErrNotFound
	}
	cp := *stats
	return &cp, nil
}

func (f *FakeScanRepo) TypeBreakdown(_ context.Context, sessionID uint) ([]repositories.TypeBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byType := make(map[string]*repositories.TypeBucket)
	for _, file := range f.Files[sessionID] {
		b, ok := byType[file.FileType]
		if !ok {
			b = &repositories.TypeBucket{FileType: file.FileType}
			byType[file.FileType] = b
		}
		b.Count++
		b.Size += file.SizeBytes
	}
	var out []repositories.TypeBucket
	for _, b := range byType {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Size > out[j].Size })
	return out, nil
}

func (f *FakeScanRepo) SamplesByType(_ context.Context, sessionID uint, fileType string, limit int) ([]models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FileRecord
	for _, file := range f.Files[sessionID] {
		if file.FileType == fileType {
			out = append(out, file)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SizeBytes > out[j].SizeBytes })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeScanRepo) TopFilesBySize(_ context.Context, sessionID uint, n int) ([]models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.FileRecord, len(f.Files[sessionID]))
	copy(out, f.Files[sessionID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].SizeBytes > out[j].SizeBytes })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *FakeScanRepo) TopExtensions(_ context.Context, sessionID uint, n int) ([]repositories.NameCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int64)
	for _, file := range f.Files[sessionID] {
		if file.Extension != "" {
			counts[file.Extension]++
		}
	}
	var out []repositories.NameCount
	for name, count := range counts {
		out = append(out, repositories.NameCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *FakeScanRepo) TopFolders(_ context.Context, sessionID uint, n int) ([]repositories.FolderBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byFolder := make(map[string]*repositories.FolderBucket)
	for _, file := range f.Files[sessionID] {
		if file.ParentPath == "" {
			continue
		}
		b, ok := byFolder[file.ParentPath]
		if !ok {
			b = &repositories.FolderBucket{ParentPath: file.ParentPath}
			byFolder[file.ParentPath] = b
		}
		b.Count++
		b.Size += file.SizeBytes
	}
	var out []repositories.FolderBucket
	for _, b := range byFolder {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Size > out[j].Size })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *FakeScanRepo) FlagCounts(_ context.Context, sessionID uint) (*repositories.FlagCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &repositories.FlagCounts{}
	for _, file := range f.Files[sessionID] {
		if file.IsHidden {
			out.HiddenCount++
			out.HiddenSize += file.SizeBytes
		}
		if file.IsDirectory {
			out.DirectoryCount++
		}
	}
	return out, nil
}

func (f *FakeScanRepo) SearchFiles(_ context.Context, sessionIDs []uint, filter repositories.FileSearchFilter) ([]repositories.FileSearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inScope := make(map[uint]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		inScope[id] = true
	}
	var out []repositories.FileSearchResult
	for _, s := range f.Sessions {
		if !inScope[s.ID] {
			continue
		}
		for _, file := range f.Files[s.ID] {
			if filter.Query != "" && !strings.Contains(file.Name, filter.Query) && !strings.Contains(file.Path, filter.Query) {
				continue
			}
			if filter.FileType != "" && file.FileType != filter.FileType {
				continue
			}
			if filter.Extension != "" && file.Extension != filter.Extension {
				continue
			}
			if filter.MinSize != nil && file.SizeBytes < *filter.MinSize {
				continue
			}
			if filter.MaxSize != nil && file.SizeBytes > *filter.MaxSize {
				continue
			}
			if filter.HiddenOnly && !file.IsHidden {
				continue
			}
			result := repositories.FileSearchResult{
				Name:      file.Name,
				Path:      file.Path,
				SizeBytes: file.SizeBytes,
				FileType:  file.FileType,
				Extension: file.Extension,
				IsHidden:  file.IsHidden,
				ScanID:    s.ScanID,
			}
			if f.Devices != nil {
				if d, ok := f.Devices.Devices[s.DeviceID]; ok {
					result.AndroidID = d.AndroidID
					result.Model = d.Model
				}
			}
			out = append(out, result)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SizeBytes > out[j].SizeBytes })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *FakeScanRepo) Prune(_ context.Context, deviceID uint, keep int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var owned []*models.ScanSession
	for _, s := range f.Sessions {
		if s.DeviceID == deviceID {
			owned = append(owned, s)
		}
	}
	sort.SliceStable(owned, func(i, j int) bool { return owned[i].ID > owned[j].ID })
	if len(owned) <= keep {
		return 0, nil
	}
	drop := make(map[uint]bool)
	for _, s := range owned[keep:] {
		drop[s.ID] = true
		delete(f.Files, s.ID)
		delete(f.Stats, s.ID)
	}
	var kept []*models.ScanSession
	for _, s := range f.Sessions {
		if !drop[s.ID] {
			kept = append(kept, s)
		}
	}
	removed := int64(len(f.Sessions) - len(kept))
	f.Sessions = kept
	return removed, nil
}

func (f *FakeScanRepo) MarkAbandoned(_ context.Context, now time.Time, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	overdue := make(map[string]bool)
	if f.Commands != nil {
		f.Commands.mu.Lock()
		for _, c := range f.Commands.Commands {
			if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
				overdue[c.CommandID] = true
			}
		}
		f.Commands.mu.Unlock()
	}
	var n int64
	for _, s := range f.Sessions {
		if s.Status == models.ScanScanning && overdue[s.CommandID] {
			s.Status = models.ScanFailed
			s.ErrorMessage = reason
			t := now
			s.CompletedAt = &t
			n++
		}
	}
	return n, nil
}
