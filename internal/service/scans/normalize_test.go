package scans

import (
	"testing"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestDeriveExtension(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"photo.JPG", "jpg"},
		{"archive.tar.gz", "gz"},
		{"noext", ""},
		{"trailingdot.", ""},
		{".hidden", "hidden"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveExtension(tc.name), "name=%q", tc.name)
	}
}

func TestDeriveParentPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/storage/emulated/0/DCIM/Camera/IMG_001.jpg", "/storage/emulated/0/DCIM/Camera/"},
		{"/file.txt", "/"},
		{"relative.txt", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveParentPath(tc.path), "path=%q", tc.path)
	}
}

func TestClassifyExtension(t *testing.T) {
	cases := []struct {
		ext  string
		want string
	}{
		{"jpg", models.FileTypeImage},
		{"JPEG", models.FileTypeImage},
		{"mp4", models.FileTypeVideo},
		{"flac", models.FileTypeAudio},
		{"docx", models.FileTypeDocument},
		{"apk", models.FileTypeAPK},
		{"7z", models.FileTypeArchive},
		{"sqlite", models.FileTypeDatabase},
		{"log", models.FileTypeLog},
		{"tmp", models.FileTypeTemporary},
		{"xyz", models.FileTypeOther},
		{"", models.FileTypeOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyExtension(tc.ext), "ext=%q", tc.ext)
	}
}

func TestNormalizeFileDerivesMissingFields(t *testing.T) {
	in := FileInput{
		Path:      "/storage/emulated/0/Download/report.PDF",
		Name:      "report.PDF",
		SizeBytes: int64Ptr(2048),
	}
	rec, err := normalizeFile(&in, 0)
	require.NoError(t, err)

	assert.Equal(t, "pdf", rec.Extension)
	assert.Equal(t, "/storage/emulated/0/Download/", rec.ParentPath)
	assert.Equal(t, models.FileTypeDocument, rec.FileType)
	assert.Equal(t, int64(2048), rec.SizeBytes)
	assert.True(t, rec.IsReadable, "readability defaults to true when unreported")
}

func TestNormalizeFileKeepsExplicitClassification(t *testing.T) {
	in := FileInput{
		Path:      "/data/app/base.apk",
		Name:      "base.apk",
		SizeBytes: int64Ptr(1),
		FileType:  models.FileTypeSystem,
	}
	rec, err := normalizeFile(&in, 0)
	require.NoError(t, err)
	assert.Equal(t, models.FileTypeSystem, rec.FileType, "device classification must win over the extension table")
}

func TestNormalizeFileStripsExtensionDot(t *testing.T) {
	in := FileInput{
		Path:      "/a/b.MP3",
		Name:      "b.MP3",
		SizeBytes: int64Ptr(10),
		Extension: ".MP3",
	}
	rec, err := normalizeFile(&in, 0)
	require.NoError(t, err)
	assert.Equal(t, "mp3", rec.Extension)
	assert.Equal(t, models.FileTypeAudio, rec.FileType)
}

func TestNormalizeFilesFailsFastWithIndexedField(t *testing.T) {
	inputs := []FileInput{
		{Path: "/a/ok.txt", Name: "ok.txt", SizeBytes: int64Ptr(5)},
		{Path: "", Name: "broken", SizeBytes: int64Ptr(5)},
	}
	_, _, err := normalizeFiles(inputs)
	require.Error(t, err)

	var ve *servicecore.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "files[1].path", ve.Field)
}

func TestNormalizeFilesRejectsNegativeSize(t *testing.T) {
	inputs := []FileInput{
		{Path: "/a/b", Name: "b", SizeBytes: int64Ptr(-1)},
	}
	_, _, err := normalizeFiles(inputs)
	var ve *servicecore.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "files[0].size_bytes", ve.Field)
}

func TestNormalizeFilesTotalSize(t *testing.T) {
	inputs := []FileInput{
		{Path: "/a/1", Name: "1", SizeBytes: int64Ptr(100)},
		{Path: "/a/2", Name: "2", SizeBytes: int64Ptr(250)},
	}
	records, total, err := normalizeFiles(inputs)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int64(350), total)
}
