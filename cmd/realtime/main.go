package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/lukemenard/canopyviz/internal/adapters/nats"
	"github.com/lukemenard/canopyviz/internal/adapters/overpass"
	"github.com/lukemenard/canopyviz/internal/adapters/postgres"
	"github.com/lukemenard/canopyviz/internal/core/domain"
	"github.com/lukemenard/canopyviz/internal/core/usecases"
	"github.com/lukemenard/canopyviz/internal/pkg/config"
	"github.com/lukemenard/canopyviz/internal/pkg/logging"
)

// The realtime worker listens for viewport ingest events and re-checks
// every saved tree that falls inside the ingested bounds. Trees found
// within the clearance buffer produce proximity warnings on the broker,
// which the API relays to connected WebSocket clients.
func main() {
	cfg, err := config.Load("canopyviz-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	projects := postgres.NewProjectRepo(db)

	// NATS
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer publisher.Close()

	subscriber, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer subscriber.Close()

	// The worker fetches geometry itself: the API's viewport cache is
	// in-process and not visible here.
	source := overpass.New(cfg.Overpass.URL,
		time.Duration(cfg.Overpass.RequestTimeout)*time.Second,
		cfg.Overpass.QueryTimeoutSec)

	powerlines := usecases.NewPowerLineService(source, nil, usecases.PowerLineConfig{
		QuietPeriod: time.Duration(cfg.Viewport.QuietPeriodMs) * time.Millisecond,
		MinZoom:     cfg.Viewport.MinZoom,
	})
	defer powerlines.Stop()

	proximity := usecases.NewProximityService(cfg.Viewport.BufferFt)
	bufferFt := proximity.DefaultBuffer()

	err = subscriber.SubscribeIngests(ctx, func(ctx context.Context, event *domain.IngestEvent) error {
		if event.Features == 0 {
			return nil
		}
		return checkTrees(ctx, event, projects, powerlines, proximity, publisher, bufferFt)
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("realtime worker started", "buffer_ft", bufferFt)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("realtime worker stopped")
}

// checkTrees evaluates every saved tree inside the event's bounds and
// publishes a warning for each one inside the clearance buffer.
func checkTrees(
	ctx context.Context,
	event *domain.IngestEvent,
	projects *postgres.ProjectRepo,
	powerlines *usecases.PowerLineService,
	proximity *usecases.ProximityService,
	publisher *natsadapter.Publisher,
	bufferFt float64,
) error {
	// The zoom gate does not apply here: the event only exists because
	// an ingest already happened at a legal zoom.
	fc, ok := powerlines.Cached(event.Bounds)
	if !ok {
		fc = powerlines.Ensure(ctx, event.Bounds, 22)
	}
	if fc.Empty() {
		return nil
	}

	const pageSize = 100
	for offset := 0; ; offset += pageSize {
		page, err := projects.List(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		for _, project := range page {
			for _, tree := range project.Trees {
				if !inside(event.Bounds, tree.Location) {
					continue
				}
				result := proximity.Check(tree.Location, fc, bufferFt)
				if !result.Near || result.DistanceFt == nil {
					continue
				}
				warning := &domain.ProximityWarning{
					ProjectID:  project.ID,
					TreeID:     tree.ID,
					Location:   tree.Location,
					DistanceFt: *result.DistanceFt,
					BufferFt:   bufferFt,
				}
				if err := publisher.PublishWarning(ctx, warning); err != nil {
					slog.Warn("warning publish failed",
						"project_id", project.ID, "tree_id", tree.ID, "error", err)
				}
			}
		}

		if len(page) < pageSize {
			return nil
		}
	}
}

func inside(b domain.BoundingBox, p domain.GeoPoint) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lng >= b.West && p.Lng <= b.East
}
