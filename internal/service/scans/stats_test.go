package scans

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(path, name, fileType string, size int64) models.FileRecord {
	return models.FileRecord{Path: path, Name: name, FileType: fileType, SizeBytes: size}
}

func TestStatsAccumulatorTypeBuckets(t *testing.T) {
	acc := NewStatsAccumulator()
	files := []models.FileRecord{
		record("/a/1.jpg", "1.jpg", models.FileTypeImage, 100),
		record("/a/2.jpg", "2.jpg", models.FileTypeImage, 300),
		record("/a/3.mp4", "3.mp4", models.FileTypeVideo, 5000),
		record("/a/4.pdf", "4.pdf", models.FileTypeDocument, 40),
		record("/a/5.apk", "5.apk", models.FileTypeAPK, 900),
		record("/a/6.zip", "6.zip", models.FileTypeArchive, 70),
		record("/a/7.xyz", "7.xyz", models.FileTypeOther, 1),
	}
	for i := range files {
		acc.Add(&files[i])
	}
	stats, err := acc.Stats(1)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.ImageCount)
	assert.Equal(t, int64(400), stats.ImageSize)
	assert.Equal(t, int64(1), stats.VideoCount)
	assert.Equal(t, int64(5000), stats.VideoSize)
	assert.Equal(t, int64(1), stats.DocumentCount)
	assert.Equal(t, int64(1), stats.APKCount)
	assert.Equal(t, int64(900), stats.APKSize)
	assert.Equal(t, int64(1), stats.ArchiveCount)
	assert.Equal(t, uint(1), stats.ScanSessionID)
}

func TestStatsAccumulatorFolderAndHiddenBuckets(t *testing.T) {
	acc := NewStatsAccumulator()
	files := []models.FileRecord{
		record("/storage/emulated/0/DCIM/Camera/IMG_1.jpg", "IMG_1.jpg", models.FileTypeImage, 10),
		record("/storage/emulated/0/Download/setup.apk", "setup.apk", models.FileTypeAPK, 20),
		record("/storage/emulated/0/WhatsApp/Media/vid.mp4", "vid.mp4", models.FileTypeVideo, 30),
		// lowercase marker must not match
		record("/storage/emulated/0/download/other.txt", "other.txt", models.FileTypeDocument, 40),
	}
	files = append(files, models.FileRecord{
		Path: "/storage/emulated/0/.cfg", Name: ".cfg",
		FileType: models.FileTypeOther, SizeBytes: 5, IsHidden: true,
	})
	for i := range files {
		acc.Add(&files[i])
	}
	stats, err := acc.Stats(1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.CameraCount)
	assert.Equal(t, int64(10), stats.CameraSize)
	assert.Equal(t, int64(1), stats.DownloadsCount)
	assert.Equal(t, int64(20), stats.DownloadsSize)
	assert.Equal(t, int64(1), stats.WhatsappCount)
	assert.Equal(t, int64(30), stats.WhatsappSize)
	assert.Equal(t, int64(1), stats.HiddenCount)
	assert.Equal(t, int64(5), stats.HiddenSize)
}

func TestStatsAccumulatorLargestKeepsTopTenSorted(t *testing.T) {
	acc := NewStatsAccumulator()
	for i := 1; i <= 15; i++ {
		f := record(fmt.Sprintf("/a/%d", i), fmt.Sprintf("%d", i), models.FileTypeOther, int64(i*10))
		acc.Add(&f)
	}
	largest := acc.Largest()
	require.Len(t, largest, 10)
	assert.Equal(t, int64(150), largest[0].SizeBytes)
	assert.Equal(t, int64(60), largest[9].SizeBytes)
	for i := 1; i < len(largest); i++ {
		assert.LessOrEqual(t, largest[i].SizeBytes, largest[i-1].SizeBytes)
	}
}

func TestStatsAccumulatorLargestTiesKeepFeedOrder(t *testing.T) {
	acc := NewStatsAccumulator()
	first := record("/a/first", "first", models.FileTypeOther, 100)
	second := record("/a/second", "second", models.FileTypeOther, 100)
	acc.Add(&first)
	acc.Add(&second)

	largest := acc.Largest()
	require.Len(t, largest, 2)
	assert.Equal(t, "first", largest[0].Name)
	assert.Equal(t, "second", largest[1].Name)
}

func TestStatsAccumulatorDeterministic(t *testing.T) {
	files := []models.FileRecord{
		record("/a/1.jpg", "1.jpg", models.FileTypeImage, 100),
		record("/a/2.mp4", "2.mp4", models.FileTypeVideo, 900),
		record("/a/3.pdf", "3.pdf", models.FileTypeDocument, 50),
	}
	run := func() *models.ScanStats {
		acc := NewStatsAccumulator()
		for i := range files {
			acc.Add(&files[i])
		}
		stats, err := acc.Stats(7)
		require.NoError(t, err)
		return stats
	}
	assert.Equal(t, run(), run(), "same input must aggregate to identical stats")
}

func TestStatsAccumulatorEmptySnapshotIsJSONArray(t *testing.T) {
	stats, err := NewStatsAccumulator().Stats(3)
	require.NoError(t, err)
	assert.Equal(t, "[]", stats.LargestFiles)

	var snapshot []LargestFile
	require.NoError(t, json.Unmarshal([]byte(stats.LargestFiles), &snapshot))
	assert.Empty(t, snapshot)
}
