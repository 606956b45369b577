package scans

import (
	"encoding/json"
	"strings"

	"github.com/lbaudin/androfleet/internal/models"
)

// topLargestFiles is the size of the largest-files snapshot in ScanStats.
const topLargestFiles = 10

// Well-known folder markers, matched as case-sensitive path substrings.
const (
	folderCamera    = "DCIM/Camera"
	folderDownloads = "Download"
	folderWhatsapp  = "WhatsApp"
)

// LargestFile is one entry of the largest-files snapshot.
type LargestFile struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	FileType  string `json:"file_type"`
}

// StatsAccumulator folds FileRecords into a ScanStats row. It is a pure
// aggregate of whatever records were fed in, so running it twice over the
// same set yields identical numbers. Records can be fed in batches; order
// only matters for tie-breaking in the largest-files snapshot, where earlier
// records win.
type StatsAccumulator struct {
	stats   models.ScanStats
	largest []LargestFile
}

func NewStatsAccumulator() *StatsAccumulator {
	return &StatsAccumulator{}
}

// Add folds one record into the aggregate.
func (a *StatsAccumulator) Add(f *models.FileRecord) {
	size := f.SizeBytes

	switch f.FileType {
	case models.FileTypeImage:
		a.stats.ImageCount++
		a.stats.ImageSize += size
	case models.FileTypeVideo:
		a.stats.VideoCount++
		a.stats.VideoSize += size
	case models.FileTypeAudio:
		a.stats.AudioCount++
		a.stats.AudioSize += size
	case models.FileTypeDocument:
		a.stats.DocumentCount++
		a.stats.DocumentSize += size
	case models.FileTypeAPK:
		a.stats.APKCount++
		a.stats.APKSize += size
	case models.FileTypeArchive:
		a.stats.ArchiveCount++
		a.stats.ArchiveSize += size
	}

	if strings.Contains(f.Path, folderCamera) {
		a.stats.CameraCount++
		a.stats.CameraSize += size
	}
	if strings.Contains(f.Path, folderDownloads) {
		a.stats.DownloadsCount++
		a.stats.DownloadsSize += size
	}
	if strings.Contains(f.Path, folderWhatsapp) {
		a.stats.WhatsappCount++
		a.stats.WhatsappSize += size
	}

	if f.IsHidden {
		a.stats.HiddenCount++
		a.stats.HiddenSize += size
	}

	a.addLargest(f)
}

// addLargest keeps the running top-N sorted descending. Insertion goes after
// existing equal sizes, so ties resolve in feed order.
func (a *StatsAccumulator) addLargest(f *models.FileRecord) {
	pos := len(a.largest)
	for i, lf := range a.largest {
		if f.SizeBytes > lf.SizeBytes {
			pos = i
			break
		}
	}
	if pos >= topLargestFiles {
		return
	}
	entry := LargestFile{Name: f.Name, Path: f.Path, SizeBytes: f.SizeBytes, FileType: f.FileType}
	a.largest = append(a.largest, LargestFile{})
	copy(a.largest[pos+1:], a.largest[pos:])
	a.largest[pos] = entry
	if len(a.largest) > topLargestFiles {
		a.largest = a.largest[:topLargestFiles]
	}
}

// Largest returns the current snapshot, biggest first.
func (a *StatsAccumulator) Largest() []LargestFile {
	return a.largest
}

// Stats finalizes the aggregate for one session.
func (a *StatsAccumulator) Stats(sessionID uint) (*models.ScanStats, error) {
	largest := a.largest
	if largest == nil {
		largest = []LargestFile{}
	}
	snapshot, err := json.Marshal(largest)
	if err != nil {
		return nil, err
	}
	stats := a.stats
	stats.ScanSessionID = sessionID
	stats.LargestFiles = string(snapshot)
	return &stats, nil
}
