package commands

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
)

// Command parameters are a tagged union keyed by the command type: each type
// decodes into its own struct so malformed shapes are rejected before the
// command row exists, while "custom" stays an open object.

// NotificationParams must carry the message to display.
type NotificationParams struct {
	Message string `json:"message" validate:"required"`
	Title   string `json:"title"`
}

// ListFilesParams drive a device-side file system enumeration.
type ListFilesParams struct {
	Path           string   `json:"path" validate:"required"`
	MaxDepth       *int     `json:"max_depth" validate:"omitempty,min=1"`
	IncludeHidden  *bool    `json:"include_hidden"`
	FileTypes      []string `json:"file_types" validate:"omitempty,dive,oneof=image video audio document apk archive database log temporary system other"`
	MinSize        *int64   `json:"min_size" validate:"omitempty,min=0"`
	MaxSize        *int64   `json:"max_size" validate:"omitempty,min=0"`
	GenerateHashes *bool    `json:"generate_hashes"`

	// ScanID correlates the command with its ScanSession; injected by the
	// server, never supplied by the admin.
	ScanID string `json:"scan_id,omitempty"`
}

// LocateParams optionally bound the accuracy in percent.
type LocateParams struct {
	Accuracy *int `json:"accuracy" validate:"omitempty,min=0,max=100"`
}

// SyncParams optionally scope the sync to one folder.
type SyncParams struct {
	Folder *string `json:"folder"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report field names as they appear on the wire.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var commandTypes = map[string]bool{
	models.CommandSync:         true,
	models.CommandUpdate:       true,
	models.CommandReboot:       true,
	models.CommandLocate:       true,
	models.CommandNotification: true,
	models.CommandBackup:       true,
	models.CommandWipe:         true,
	models.CommandListFiles:    true,
	models.CommandCustom:       true,
}

// ValidCommandType reports whether t is a known command type.
func ValidCommandType(t string) bool {
	return commandTypes[t]
}

// ValidateParams checks raw against the parameter struct for the command
// type and returns the canonical JSON to persist. Unknown keys are kept for
// forward compatibility; only typed fields are shape-checked.
func ValidateParams(cmdType string, raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", servicecore.Invalid("params", "must be a JSON object")
	}

	var target any
	switch cmdType {
	case models.CommandNotification:
		target = &NotificationParams{}
	case models.CommandListFiles:
		target = &ListFilesParams{}
	case models.CommandLocate:
		target = &LocateParams{}
	case models.CommandSync:
		target = &SyncParams{}
	default:
		// reboot/update/backup/wipe/custom take an open object.
		return string(raw), nil
	}

	if err := json.Unmarshal(raw, target); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return "", servicecore.Invalid("params."+typeErr.Field, "has wrong type, want %s", typeErr.Type)
		}
		return "", servicecore.Invalid("params", "malformed JSON")
	}
	if err := validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return "", servicecore.Invalid("params."+fe.Field(), "failed %q constraint", fe.Tag())
		}
		return "", servicecore.Invalid("params", "invalid")
	}
	return string(raw), nil
}
