package api

import (
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/lbaudin/androfleet/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/lbaudin/androfleet/internal/api/handlers"
	"github.com/lbaudin/androfleet/internal/api/middleware"
	"github.com/lbaudin/androfleet/internal/config"
	"github.com/rs/cors"
)

// Deps is everything the router needs, wired up in main.
type Deps struct {
	Auth     *handlers.AuthHandler
	Devices  *handlers.DeviceHandler
	Commands *handlers.CommandHandler
	Scans    *handlers.ScanHandler
	Search   *handlers.SearchHandler
}

func SetupRouter(cfg config.Config, log *slog.Logger, d Deps) http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(cfg.CorsConfig)

	// ---------- PUBLIC ROUTES ----------
	mainMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	mainMux.HandleFunc("POST /api/v1/auth/login", d.Auth.Login)

	// Device-facing endpoints. Register and heartbeat are open by design;
	// poll/ack/upload authenticate with device-held credentials in the body.
	mainMux.HandleFunc("POST /api/v1/devices/register", d.Devices.Register)
	mainMux.HandleFunc("POST /api/v1/devices/heartbeat", d.Devices.Heartbeat)
	mainMux.HandleFunc("POST /api/v1/devices/commands/poll", d.Commands.Poll)
	mainMux.HandleFunc("POST /api/v1/devices/commands/ack", d.Commands.Acknowledge)
	mainMux.HandleFunc("POST /api/v1/scans/upload", d.Scans.Upload)

	// ---------- ADMIN ROUTES ----------
	adminMux := http.NewServeMux()

	adminMux.HandleFunc("POST /auth/logout", d.Auth.Logout)

	adminMux.HandleFunc("GET /devices", d.Devices.List)
	adminMux.HandleFunc("GET /devices/search", d.Devices.Search)
	adminMux.HandleFunc("GET /devices/stats", d.Devices.FleetStats)
	adminMux.HandleFunc("GET /devices/{id}", d.Devices.Get)
	adminMux.HandleFunc("POST /devices/{id}/activate", d.Devices.Activate)
	adminMux.HandleFunc("POST /devices/{id}/deactivate", d.Devices.Deactivate)
	adminMux.HandleFunc("POST /devices/{id}/regenerate-key", d.Devices.RegenerateKey)

	adminMux.HandleFunc("POST /devices/{id}/commands", d.Commands.Send)
	adminMux.HandleFunc("GET /devices/{id}/commands/pending", d.Commands.Pending)

	adminMux.HandleFunc("POST /devices/{id}/scans", d.Scans.RequestFileList)
	adminMux.HandleFunc("GET /devices/{id}/scans", d.Scans.List)
	adminMux.HandleFunc("GET /devices/{id}/scans/detail", d.Scans.Detail)
	adminMux.HandleFunc("GET /devices/{id}/scans/stats", d.Scans.Report)
	adminMux.HandleFunc("POST /devices/{id}/scans/prune", d.Scans.Prune)
	adminMux.HandleFunc("POST /scans/{scanId}/cancel", d.Scans.Cancel)

	adminMux.HandleFunc("GET /files/search", d.Search.Files)

	adminMux.HandleFunc("POST /maintenance/reconcile", d.Scans.Reconcile)

	mainMux.Handle("/api/v1/admin/",
		http.StripPrefix(
			"/api/v1/admin",
			middleware.AdminAuth(cfg.JWTSecret, adminMux),
		),
	)

	log.Info("router initialized")
	handler := c.Handler(mainMux)
	handler = middleware.Logger(log, handler)
	return handler
}
