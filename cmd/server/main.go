package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lbaudin/androfleet/internal/api"
	"github.com/lbaudin/androfleet/internal/api/handlers"
	"github.com/lbaudin/androfleet/internal/config"
	"github.com/lbaudin/androfleet/internal/repositories"
	"github.com/lbaudin/androfleet/internal/service/commands"
	"github.com/lbaudin/androfleet/internal/service/devices"
	"github.com/lbaudin/androfleet/internal/service/scans"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := config.Load()

	db, err := repositories.Connect(cfg.DBURL)
	if err != nil {
		log.Error("database setup failed", "error", err)
		os.Exit(1)
	}

	deviceRepo := repositories.NewDeviceRepository(db)
	commandRepo := repositories.NewCommandRepository(db)
	scanRepo := repositories.NewScanRepository(db)
	adminRepo := repositories.NewAdminUserRepository(db)

	registry := devices.NewRegistry(deviceRepo, log)
	queue := commands.NewQueue(commandRepo, deviceRepo, &commands.LogTransport{Log: log}, log)
	scanService := scans.NewService(scanRepo, deviceRepo, queue, log)

	handler := api.SetupRouter(cfg, log, api.Deps{
		Auth:     &handlers.AuthHandler{Admins: adminRepo, JWTSecret: cfg.JWTSecret},
		Devices:  &handlers.DeviceHandler{Registry: registry},
		Commands: &handlers.CommandHandler{Queue: queue, Registry: registry},
		Scans:    &handlers.ScanHandler{Scans: scanService, Queue: queue},
		Search:   &handlers.SearchHandler{Scans: scanService},
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: handler,
		// Ingestion uploads can be large; the write timeout leaves room
		// for a bulk insert to finish inside the request.
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting androfleet server", "port", cfg.Port, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
