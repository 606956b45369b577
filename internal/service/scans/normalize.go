package scans

import (
	"fmt"
	"strings"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
)

// MaxUploadFiles caps one upload to bound memory and transaction time.
const MaxUploadFiles = 200000

// extensionTypes is the fixed extension -> file-type table. Applied only when
// the device did not classify the file itself.
var extensionTypes = map[string]string{
	"jpg": models.FileTypeImage, "jpeg": models.FileTypeImage, "png": models.FileTypeImage,
	"gif": models.FileTypeImage, "bmp": models.FileTypeImage, "webp": models.FileTypeImage,
	"heic": models.FileTypeImage,

	"mp4": models.FileTypeVideo, "avi": models.FileTypeVideo, "mkv": models.FileTypeVideo,
	"mov": models.FileTypeVideo, "wmv": models.FileTypeVideo, "flv": models.FileTypeVideo,
	"3gp": models.FileTypeVideo,

	"mp3": models.FileTypeAudio, "wav": models.FileTypeAudio, "aac": models.FileTypeAudio,
	"ogg": models.FileTypeAudio, "flac": models.FileTypeAudio, "m4a": models.FileTypeAudio,

	"pdf": models.FileTypeDocument, "doc": models.FileTypeDocument, "docx": models.FileTypeDocument,
	"xls": models.FileTypeDocument, "xlsx": models.FileTypeDocument, "ppt": models.FileTypeDocument,
	"pptx": models.FileTypeDocument, "txt": models.FileTypeDocument, "rtf": models.FileTypeDocument,
	"odt": models.FileTypeDocument, "ods": models.FileTypeDocument,

	"zip": models.FileTypeArchive, "rar": models.FileTypeArchive, "7z": models.FileTypeArchive,
	"tar": models.FileTypeArchive, "gz": models.FileTypeArchive,

	"apk": models.FileTypeAPK,

	"db": models.FileTypeDatabase, "sqlite": models.FileTypeDatabase,

	"log": models.FileTypeLog,

	"tmp": models.FileTypeTemporary, "temp": models.FileTypeTemporary, "cache": models.FileTypeTemporary,
}

// FileInput is one uploaded file entry before normalization.
type FileInput struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	SizeBytes *int64 `json:"size_bytes"`

	ParentPath string `json:"parent_path"`
	Extension  string `json:"extension"`
	FileType   string `json:"file_type"`
	MimeType   string `json:"mime_type"`

	LastModified *int64 `json:"last_modified"`
	LastAccessed *int64 `json:"last_accessed"`
	CreatedTime  *int64 `json:"created_time"`

	IsHidden    bool  `json:"is_hidden"`
	IsDirectory bool  `json:"is_directory"`
	IsReadable  *bool `json:"is_readable"`
	IsWritable  bool  `json:"is_writable"`

	MD5Hash    string `json:"md5_hash"`
	SHA256Hash string `json:"sha256_hash"`

	Width      *int     `json:"width"`
	Height     *int     `json:"height"`
	DurationMS *int64   `json:"media_duration_ms"`
	GPSLat     *float64 `json:"gps_lat"`
	GPSLng     *float64 `json:"gps_lng"`

	PackageName    string `json:"package_name"`
	PackageVersion string `json:"package_version"`
}

// DeriveExtension returns the case-folded substring after the last dot of a
// file name, or "" when there is none.
func DeriveExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// DeriveParentPath returns everything before the last slash of an absolute
// path, trailing slash retained.
func DeriveParentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx+1]
}

// ClassifyExtension maps an extension to its file-type bucket, defaulting to
// "other".
func ClassifyExtension(ext string) string {
	if t, ok := extensionTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return models.FileTypeOther
}

// normalizeFiles validates and converts an upload, failing fast on the first
// malformed entry with its index in the error.
func normalizeFiles(inputs []FileInput) ([]models.FileRecord, int64, error) {
	records := make([]models.FileRecord, 0, len(inputs))
	var totalSize int64
	for i := range inputs {
		rec, err := normalizeFile(&inputs[i], i)
		if err != nil {
			return nil, 0, err
		}
		totalSize += rec.SizeBytes
		records = append(records, rec)
	}
	return records, totalSize, nil
}

func normalizeFile(in *FileInput, idx int) (models.FileRecord, error) {
	if in.Path == "" {
		return models.FileRecord{}, servicecore.Invalid(fieldAt(idx, "path"), "is required")
	}
	if in.Name == "" {
		return models.FileRecord{}, servicecore.Invalid(fieldAt(idx, "name"), "is required")
	}
	if in.SizeBytes == nil {
		return models.FileRecord{}, servicecore.Invalid(fieldAt(idx, "size_bytes"), "is required")
	}
	if *in.SizeBytes < 0 {
		return models.FileRecord{}, servicecore.Invalid(fieldAt(idx, "size_bytes"), "must not be negative")
	}

	ext := strings.ToLower(strings.TrimPrefix(in.Extension, "."))
	if ext == "" {
		ext = DeriveExtension(in.Name)
	}
	parent := in.ParentPath
	if parent == "" {
		parent = DeriveParentPath(in.Path)
	}
	// An explicit classification from the device wins over the table.
	fileType := in.FileType
	if fileType == "" {
		fileType = ClassifyExtension(ext)
	}

	readable := true
	if in.IsReadable != nil {
		readable = *in.IsReadable
	}

	return models.FileRecord{
		Path:           in.Path,
		ParentPath:     parent,
		Name:           in.Name,
		Extension:      ext,
		SizeBytes:      *in.SizeBytes,
		LastModified:   in.LastModified,
		LastAccessed:   in.LastAccessed,
		CreatedTime:    in.CreatedTime,
		FileType:       fileType,
		MimeType:       in.MimeType,
		IsHidden:       in.IsHidden,
		IsDirectory:    in.IsDirectory,
		IsReadable:     readable,
		IsWritable:     in.IsWritable,
		MD5Hash:        in.MD5Hash,
		SHA256Hash:     in.SHA256Hash,
		Width:          in.Width,
		Height:         in.Height,
		DurationMS:     in.DurationMS,
		GPSLat:         in.GPSLat,
		GPSLng:         in.GPSLng,
		PackageName:    in.PackageName,
		PackageVersion: in.PackageVersion,
	}, nil
}

func fieldAt(idx int, field string) string {
	return fmt.Sprintf("files[%d].%s", idx, field)
}
