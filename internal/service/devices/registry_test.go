package devices

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lbaudin/androfleet/internal/repositories/repotest"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) (*Registry, *repotest.FakeDeviceRepo) {
	t.Helper()
	repo := repotest.NewFakeDeviceRepo()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(repo, log), repo
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestRegisterCreatesWithKey(t *testing.T) {
	reg, _ := testRegistry(t)

	device, created, err := reg.Register(context.Background(), "abc123", Attributes{
		Model:        strPtr("Pixel 8"),
		Manufacturer: strPtr("Google"),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, device.ID)
	assert.Len(t, device.DeviceKey, 64, "sha256 hex")
	assert.Equal(t, "Pixel 8", device.Model)
	assert.True(t, device.IsActive)
	assert.Equal(t, "unknown", device.AndroidVersion)
}

func TestRegisterTwiceKeepsKey(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	first, created, err := reg.Register(ctx, "abc123", Attributes{Model: strPtr("Pixel 8")})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := reg.Register(ctx, "abc123", Attributes{
		Model:          strPtr("Pixel 8 Pro"),
		AndroidVersion: strPtr("15"),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.DeviceKey, second.DeviceKey, "re-registration must not rotate the key")
	assert.Equal(t, "Pixel 8 Pro", second.Model)
	assert.Equal(t, "15", second.AndroidVersion)
}

func TestRegisterRequiresAndroidID(t *testing.T) {
	reg, _ := testRegistry(t)
	_, _, err := reg.Register(context.Background(), "  ", Attributes{})
	assert.True(t, servicecore.IsValidation(err))
}

func TestRegenerateKeyInvalidatesOld(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	device, _, err := reg.Register(ctx, "abc123", Attributes{})
	require.NoError(t, err)

	oldKey, newKey, err := reg.RegenerateKey(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, device.DeviceKey, oldKey)
	assert.NotEqual(t, oldKey, newKey)

	_, err = reg.Authenticate(ctx, "abc123", oldKey)
	assert.ErrorIs(t, err, servicecore.ErrInvalidCredentials)

	authed, err := reg.Authenticate(ctx, "abc123", newKey)
	require.NoError(t, err)
	assert.Equal(t, device.ID, authed.ID)
}

func TestAuthenticateRejectsEmptyKey(t *testing.T) {
	reg, repo := testRegistry(t)
	ctx := context.Background()

	device, _, err := reg.Register(ctx, "abc123", Attributes{})
	require.NoError(t, err)

	// Even if a stored key were somehow empty, an empty presented key
	// must not authenticate.
	stored := repo.Devices[device.ID]
	stored.DeviceKey = ""
	_, err = reg.Authenticate(ctx, "abc123", "")
	assert.ErrorIs(t, err, servicecore.ErrInvalidCredentials)
}

func TestHeartbeatUnknownDevice(t *testing.T) {
	reg, repo := testRegistry(t)

	_, err := reg.RecordHeartbeat(context.Background(), "ghost", Heartbeat{BatteryLevel: intPtr(50)})
	assert.ErrorIs(t, err, servicecore.ErrNotFound)
	assert.Empty(t, repo.Devices, "a heartbeat must never create a device")
}

func TestHeartbeatPartialUpdate(t *testing.T) {
	reg, repo := testRegistry(t)
	ctx := context.Background()

	device, _, err := reg.Register(ctx, "abc123", Attributes{
		BatteryLevel: intPtr(80),
		NetworkType:  strPtr("wifi"),
	})
	require.NoError(t, err)

	at, err := reg.RecordHeartbeat(ctx, "abc123", Heartbeat{
		BatteryLevel: intPtr(42),
		IsCharging:   boolPtr(true),
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), at, time.Second)

	stored := repo.Devices[device.ID]
	require.NotNil(t, stored.BatteryLevel)
	assert.Equal(t, 42, *stored.BatteryLevel)
	assert.True(t, stored.IsCharging)
	assert.Equal(t, "wifi", stored.NetworkType, "absent fields stay untouched")
	assert.True(t, stored.IsActive)
}

func TestSetActive(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	device, _, err := reg.Register(ctx, "abc123", Attributes{})
	require.NoError(t, err)

	off, err := reg.SetActive(ctx, device.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	on, err := reg.SetActive(ctx, device.ID, true)
	require.NoError(t, err)
	assert.True(t, on.IsActive)
}

func TestSearchMinimumQuery(t *testing.T) {
	reg, _ := testRegistry(t)
	_, err := reg.Search(context.Background(), " a ")
	assert.True(t, servicecore.IsValidation(err))
}

func TestSearchMatchesModel(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	_, _, err := reg.Register(ctx, "abc123", Attributes{Model: strPtr("Pixel 8")})
	require.NoError(t, err)
	_, _, err = reg.Register(ctx, "def456", Attributes{Model: strPtr("Galaxy S24")})
	require.NoError(t, err)

	hits, err := reg.Search(ctx, "Pixel")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "abc123", hits[0].AndroidID)
}
