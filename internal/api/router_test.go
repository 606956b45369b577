package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lbaudin/androfleet/internal/api/handlers"
	"github.com/lbaudin/androfleet/internal/config"
	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/repositories/repotest"
	"github.com/lbaudin/androfleet/internal/service/commands"
	"github.com/lbaudin/androfleet/internal/service/devices"
	"github.com/lbaudin/androfleet/internal/service/scans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "test-secret"
	testPassword = "hunter2-hunter2"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	deviceRepo := repotest.NewFakeDeviceRepo()
	cmdRepo := repotest.NewFakeCommandRepo()
	scanRepo := repotest.NewFakeScanRepo(deviceRepo, cmdRepo)
	adminRepo := repotest.NewFakeAdminRepo()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, adminRepo.Upsert(t.Context(), &models.AdminUser{
		Username:     "admin",
		PasswordHash: string(hash),
	}))

	registry := devices.NewRegistry(deviceRepo, log)
	queue := commands.NewQueue(cmdRepo, deviceRepo, &commands.LogTransport{Log: log}, log)
	scanSvc := scans.NewService(scanRepo, deviceRepo, queue, log)

	cfg := config.Config{
		JWTSecret:  testSecret,
		CorsConfig: config.CorsConfig(),
	}
	handler := SetupRouter(cfg, log, Deps{
		Auth:     &handlers.AuthHandler{Admins: adminRepo, JWTSecret: testSecret},
		Devices:  &handlers.DeviceHandler{Registry: registry},
		Commands: &handlers.CommandHandler{Queue: queue, Registry: registry},
		Scans:    &handlers.ScanHandler{Scans: scanSvc, Queue: queue},
		Search:   &handlers.SearchHandler{Scans: scanSvc},
	})

	ts := &testServer{handler: handler}
	env := ts.do(t, http.MethodPost, "/api/v1/auth/login", http.StatusOK,
		map[string]any{"username": "admin", "password": testPassword})
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Token)
	ts.token = login.Token
	return ts
}

// do sends a JSON request and decodes the response envelope, failing the test
// on a status mismatch.
func (ts *testServer) do(t *testing.T, method, path string, wantStatus int, body any) envelope {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, wantStatus, rec.Code, "%s %s: %s", method, path, rec.Body.String())

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return env
}

func (ts *testServer) registerDevice(t *testing.T, androidID string) (deviceID uint, serverKey string) {
	t.Helper()
	env := ts.do(t, http.MethodPost, "/api/v1/devices/register", http.StatusCreated,
		map[string]any{"androidId": androidID, "model": "Pixel 8", "manufacturer": "Google"})
	var data struct {
		Status    string `json:"status"`
		DeviceID  uint   `json:"device_id"`
		ServerKey string `json:"server_key"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "registered", data.Status)
	return data.DeviceID, data.ServerKey
}

func fileEntry(path, name string, size int64) map[string]any {
	return map[string]any{"path": path, "name": name, "size_bytes": size}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	saved := ts.token
	ts.token = ""
	ts.do(t, http.MethodGet, "/api/v1/admin/devices", http.StatusUnauthorized, nil)
	ts.token = "garbage"
	ts.do(t, http.MethodGet, "/api/v1/admin/devices", http.StatusUnauthorized, nil)
	ts.token = saved
	ts.do(t, http.MethodGet, "/api/v1/admin/devices", http.StatusOK, nil)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.token = ""
	ts.do(t, http.MethodPost, "/api/v1/auth/login", http.StatusUnauthorized,
		map[string]any{"username": "admin", "password": "wrong"})
}

func TestHeartbeatUnknownDevice(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/devices/heartbeat", http.StatusNotFound,
		map[string]any{"androidId": "ghost", "battery_level": 50})
}

func TestRegisterTwiceReturnsSameKey(t *testing.T) {
	ts := newTestServer(t)
	_, firstKey := ts.registerDevice(t, "abc123")

	env := ts.do(t, http.MethodPost, "/api/v1/devices/register", http.StatusOK,
		map[string]any{"androidId": "abc123", "model": "Pixel 8 Pro"})
	var data struct {
		Status    string `json:"status"`
		ServerKey string `json:"server_key"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "updated", data.Status)
	assert.Equal(t, firstKey, data.ServerKey)
}

func TestScanRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	deviceID, key := ts.registerDevice(t, "abc123")

	// Admin asks for a file inventory.
	env := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/devices/%d/scans", deviceID),
		http.StatusAccepted, map[string]any{"path": "/storage/emulated/0"})
	var requested struct {
		ScanID string `json:"scan_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &requested))
	require.NotEmpty(t, requested.ScanID)

	// The device polls and finds the list_files command.
	env = ts.do(t, http.MethodPost, "/api/v1/devices/commands/poll", http.StatusOK,
		map[string]any{"androidId": "abc123", "deviceKey": key})
	var polled struct {
		Count    int              `json:"count"`
		Commands []models.Command `json:"commands"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &polled))
	require.Equal(t, 1, polled.Count)
	assert.Equal(t, models.CommandListFiles, polled.Commands[0].Type)
	assert.Contains(t, polled.Commands[0].Params, requested.ScanID)

	// The device uploads its results.
	env = ts.do(t, http.MethodPost, "/api/v1/scans/upload", http.StatusOK, map[string]any{
		"scan_id":    requested.ScanID,
		"android_id": "abc123",
		"command_id": polled.Commands[0].CommandID,
		"files": []map[string]any{
			fileEntry("/storage/emulated/0/DCIM/Camera/IMG_1.jpg", "IMG_1.jpg", 2_000_000),
			fileEntry("/storage/emulated/0/Download/setup.apk", "setup.apk", 30_000_000),
			fileEntry("/storage/emulated/0/notes.txt", "notes.txt", 400),
		},
	})
	var result struct {
		StoredCount int64  `json:"stored_count"`
		Status      string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, int64(3), result.StoredCount)
	assert.Equal(t, models.ScanCompleted, result.Status)

	// The upload acknowledged the command: nothing pending anymore.
	env = ts.do(t, http.MethodPost, "/api/v1/devices/commands/poll", http.StatusOK,
		map[string]any{"androidId": "abc123", "deviceKey": key})
	require.NoError(t, json.Unmarshal(env.Data, &polled))
	assert.Zero(t, polled.Count)

	// Scan detail shows the type breakdown.
	env = ts.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/admin/devices/%d/scans/detail?scan_id=%s", deviceID, requested.ScanID),
		http.StatusOK, nil)
	var detail struct {
		Scan      models.ScanSession `json:"scan"`
		TypeStats []struct {
			FileType string `json:"file_type"`
			Count    int64  `json:"count"`
		} `json:"type_stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, int64(3), detail.Scan.TotalFiles)
	assert.Len(t, detail.TypeStats, 3)

	// The stats report works without a scan_id: latest completed wins.
	env = ts.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/admin/devices/%d/scans/stats", deviceID), http.StatusOK, nil)
	var report struct {
		TopFiles []struct {
			Name string `json:"name"`
		} `json:"top_files"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.NotEmpty(t, report.TopFiles)
	assert.Equal(t, "setup.apk", report.TopFiles[0].Name)
}

func TestReUploadReplacesFiles(t *testing.T) {
	ts := newTestServer(t)
	deviceID, _ := ts.registerDevice(t, "abc123")

	upload := func(files []map[string]any) {
		ts.do(t, http.MethodPost, "/api/v1/scans/upload", http.StatusOK, map[string]any{
			"scan_id":    "scan-1",
			"android_id": "abc123",
			"files":      files,
		})
	}
	upload([]map[string]any{
		fileEntry("/a/1.jpg", "1.jpg", 100),
		fileEntry("/a/2.jpg", "2.jpg", 200),
		fileEntry("/a/3.jpg", "3.jpg", 300),
	})
	upload([]map[string]any{fileEntry("/a/only.mp4", "only.mp4", 5000)})

	env := ts.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/admin/devices/%d/scans/detail?scan_id=scan-1", deviceID),
		http.StatusOK, nil)
	var detail struct {
		Scan models.ScanSession `json:"scan"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, int64(1), detail.Scan.TotalFiles)
}

func TestSendCommandValidatesParams(t *testing.T) {
	ts := newTestServer(t)
	deviceID, _ := ts.registerDevice(t, "abc123")

	env := ts.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/admin/devices/%d/commands", deviceID),
		http.StatusBadRequest,
		map[string]any{"command": "notification", "params": map[string]any{"title": "no message"}})
	assert.Contains(t, env.Message, "params.message")

	ts.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/admin/devices/%d/commands", deviceID),
		http.StatusAccepted,
		map[string]any{"command": "notification", "params": map[string]any{"message": "hello"}})
}

func TestGlobalFileSearch(t *testing.T) {
	ts := newTestServer(t)
	ts.registerDevice(t, "abc123")
	ts.registerDevice(t, "def456")

	ts.do(t, http.MethodPost, "/api/v1/scans/upload", http.StatusOK, map[string]any{
		"scan_id": "scan-a", "android_id": "abc123",
		"files": []map[string]any{
			fileEntry("/a/huge.jpg", "huge.jpg", 5_000_000),
			fileEntry("/a/tiny.jpg", "tiny.jpg", 900),
			fileEntry("/a/movie.mp4", "movie.mp4", 9_000_000),
		},
	})
	ts.do(t, http.MethodPost, "/api/v1/scans/upload", http.StatusOK, map[string]any{
		"scan_id": "scan-b", "android_id": "def456",
		"files": []map[string]any{
			fileEntry("/b/photo.jpg", "photo.jpg", 2_000_000),
		},
	})

	env := ts.do(t, http.MethodGet,
		"/api/v1/admin/files/search?file_type=image&min_size=1000000", http.StatusOK, nil)
	var data struct {
		Count   int `json:"count"`
		Results []struct {
			Name      string `json:"name"`
			AndroidID string `json:"android_id"`
			SizeBytes int64  `json:"size_bytes"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, 2, data.Count)
	assert.Equal(t, "huge.jpg", data.Results[0].Name, "ordered by size descending")
	assert.Equal(t, "photo.jpg", data.Results[1].Name)

	// Limit above the cap is rejected.
	ts.do(t, http.MethodGet, "/api/v1/admin/files/search?limit=5000", http.StatusBadRequest, nil)
}

func TestCancelScan(t *testing.T) {
	ts := newTestServer(t)
	deviceID, _ := ts.registerDevice(t, "abc123")

	env := ts.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/admin/devices/%d/scans", deviceID),
		http.StatusAccepted, map[string]any{})
	var requested struct {
		ScanID string `json:"scan_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &requested))

	env = ts.do(t, http.MethodPost,
		"/api/v1/admin/scans/"+requested.ScanID+"/cancel", http.StatusOK, nil)
	var session models.ScanSession
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, models.ScanCancelled, session.Status)

	// Cancelling again is rejected.
	ts.do(t, http.MethodPost,
		"/api/v1/admin/scans/"+requested.ScanID+"/cancel", http.StatusBadRequest, nil)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
