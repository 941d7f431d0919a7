package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lukemenard/canopyviz/internal/adapters/http"
	"github.com/lukemenard/canopyviz/internal/adapters/mapbox"
	natsadapter "github.com/lukemenard/canopyviz/internal/adapters/nats"
	"github.com/lukemenard/canopyviz/internal/adapters/overpass"
	"github.com/lukemenard/canopyviz/internal/adapters/postgres"
	"github.com/lukemenard/canopyviz/internal/adapters/valkey"
	"github.com/lukemenard/canopyviz/internal/core/ports"
	"github.com/lukemenard/canopyviz/internal/core/usecases"
	"github.com/lukemenard/canopyviz/internal/pkg/config"
	"github.com/lukemenard/canopyviz/internal/pkg/logging"
	"github.com/lukemenard/canopyviz/internal/pkg/metrics"
	"github.com/lukemenard/canopyviz/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("canopyviz-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Export pool stats to Prometheus
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}

	// NATS
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Power-line source
	source := overpass.New(cfg.Overpass.URL,
		time.Duration(cfg.Overpass.RequestTimeout)*time.Second,
		cfg.Overpass.QueryTimeoutSec)

	// Geocoding (optional, requires a Mapbox token)
	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}
	var geocodeSvc *usecases.GeocodeService
	if cfg.Mapbox.Token != "" {
		geocoder, err := mapbox.New("", cfg.Mapbox.Token, 10*time.Second)
		if err != nil {
			slog.Warn("mapbox unavailable", "error", err)
		} else {
			geocodeSvc = usecases.NewGeocodeService(geocoder, cacheSvc)
		}
	} else {
		slog.Info("geocoding disabled, no mapbox token configured")
	}

	// Use cases
	var events ports.EventPublisher
	if nc != nil {
		events = nc
	}
	powerlineSvc := usecases.NewPowerLineService(source, events, usecases.PowerLineConfig{
		QuietPeriod: time.Duration(cfg.Viewport.QuietPeriodMs) * time.Millisecond,
		MinZoom:     cfg.Viewport.MinZoom,
	})
	defer powerlineSvc.Stop()

	proximitySvc := usecases.NewProximityService(cfg.Viewport.BufferFt)
	treeModelSvc := usecases.NewTreeModelService()
	projectSvc := usecases.NewProjectService(postgres.NewProjectRepo(db))

	deps := &http.Dependencies{
		PowerLines: powerlineSvc,
		Proximity:  proximitySvc,
		TreeModels: treeModelSvc,
		Projects:   projectSvc,
		Geocode:    geocodeSvc,
		NATS:       natsConn,
		DB:         db,
		Cache:      cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "CanopyViz API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
