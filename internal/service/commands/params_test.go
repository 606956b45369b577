package commands

import (
	"encoding/json"
	"testing"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidCommandType(t *testing.T) {
	assert.True(t, ValidCommandType(models.CommandListFiles))
	assert.True(t, ValidCommandType(models.CommandNotification))
	assert.True(t, ValidCommandType(models.CommandCustom))
	assert.False(t, ValidCommandType("explode"))
	assert.False(t, ValidCommandType(""))
}

func TestValidateParamsNotification(t *testing.T) {
	t.Run("missing message", func(t *testing.T) {
		_, err := ValidateParams(models.CommandNotification, json.RawMessage(`{"title":"hi"}`))
		var ve *servicecore.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "params.message", ve.Field)
	})

	t.Run("valid", func(t *testing.T) {
		out, err := ValidateParams(models.CommandNotification, json.RawMessage(`{"message":"update available","title":"hi"}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"message":"update available","title":"hi"}`, out)
	})
}

func TestValidateParamsListFiles(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := ValidateParams(models.CommandListFiles, json.RawMessage(`{"max_depth":3}`))
		var ve *servicecore.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "params.path", ve.Field)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := ValidateParams(models.CommandListFiles, json.RawMessage(`{"path":"/sdcard","max_depth":"deep"}`))
		var ve *servicecore.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "params.max_depth", ve.Field)
	})

	t.Run("zero depth rejected", func(t *testing.T) {
		_, err := ValidateParams(models.CommandListFiles, json.RawMessage(`{"path":"/sdcard","max_depth":0}`))
		assert.True(t, servicecore.IsValidation(err))
	})

	t.Run("unknown file type bucket", func(t *testing.T) {
		_, err := ValidateParams(models.CommandListFiles, json.RawMessage(`{"path":"/sdcard","file_types":["image","bogus"]}`))
		assert.True(t, servicecore.IsValidation(err))
	})

	t.Run("valid full shape", func(t *testing.T) {
		raw := `{"path":"/storage/emulated/0","max_depth":5,"include_hidden":true,"file_types":["image","video"],"min_size":1024}`
		out, err := ValidateParams(models.CommandListFiles, json.RawMessage(raw))
		require.NoError(t, err)
		assert.JSONEq(t, raw, out)
	})
}

func TestValidateParamsLocateAccuracyBounds(t *testing.T) {
	_, err := ValidateParams(models.CommandLocate, json.RawMessage(`{"accuracy":150}`))
	assert.True(t, servicecore.IsValidation(err))

	out, err := ValidateParams(models.CommandLocate, json.RawMessage(`{"accuracy":90}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"accuracy":90}`, out)
}

func TestValidateParamsOpenObjectTypes(t *testing.T) {
	// reboot/custom carry whatever object the admin sends.
	out, err := ValidateParams(models.CommandCustom, json.RawMessage(`{"anything":["goes",1]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"anything":["goes",1]}`, out)

	_, err = ValidateParams(models.CommandReboot, json.RawMessage(`[1,2]`))
	assert.True(t, servicecore.IsValidation(err), "params must be an object")
}

func TestValidateParamsEmptyDefaultsToObject(t *testing.T) {
	out, err := ValidateParams(models.CommandSync, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, out)
}
