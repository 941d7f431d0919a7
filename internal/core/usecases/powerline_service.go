package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lukemenard/canopyviz/internal/core/domain"
	"github.com/lukemenard/canopyviz/internal/core/ports"
	"github.com/lukemenard/canopyviz/internal/pkg/metrics"
)

const (
	// DefaultQuietPeriod is the trailing-edge debounce window for
	// viewport changes.
	DefaultQuietPeriod = 800 * time.Millisecond

	// DefaultMinZoom gates ingestion: below it a viewport covers too
	// much ground for an Overpass query to be worth issuing.
	DefaultMinZoom = 14.0
)

// PowerLineConfig carries the scheduler knobs so independent sessions
// (and tests) never share timing state.
type PowerLineConfig struct {
	QuietPeriod time.Duration
	MinZoom     float64
}

// PowerLineService owns the viewport feature cache and the debounced
// fetch scheduler in front of the Overpass source.
//
// The cache is exact-match on the quantized bounding-box key, unbounded,
// and lives for the process lifetime; a key once stored is never
// refetched. Two fetches racing on the same key are benign: last write
// wins and the collections are expected to be near-identical.
type PowerLineService struct {
	source ports.PowerLineSource
	events ports.EventPublisher

	quiet   time.Duration
	minZoom float64

	mu    sync.Mutex
	cache map[string]domain.FeatureCollection
	timer *time.Timer
	gen   uint64
}

// NewPowerLineService creates a PowerLineService. events may be nil when
// no broker is configured. Zero config fields take the defaults.
func NewPowerLineService(source ports.PowerLineSource, events ports.EventPublisher, cfg PowerLineConfig) *PowerLineService {
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	if cfg.MinZoom <= 0 {
		cfg.MinZoom = DefaultMinZoom
	}
	return &PowerLineService{
		source:  source,
		events:  events,
		quiet:   cfg.QuietPeriod,
		minZoom: cfg.MinZoom,
		cache:   make(map[string]domain.FeatureCollection),
	}
}

// OnViewportChange coalesces rapid viewport changes: each call cancels
// any pending timer, and only the last call inside a quiet window
// reaches ingestion — earlier calls get no callback at all. Below the
// minimum zoom the callback fires immediately with an empty collection
// and no network call is made.
//
// Each firing carries a generation; results belonging to a superseded
// generation are discarded instead of being delivered or cached, so a
// slow fetch cannot clobber a newer viewport's state.
func (s *PowerLineService) OnViewportChange(ctx context.Context, bbox domain.BoundingBox, zoom float64, callback func(domain.FeatureCollection)) {
	if zoom < s.minZoom {
		metrics.ZoomGateSkips.Inc()
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.gen++
		s.mu.Unlock()
		if callback != nil {
			callback(domain.FeatureCollection{})
		}
		return
	}

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.quiet, func() {
		s.fire(ctx, gen, bbox, callback)
	})
	s.mu.Unlock()
}

func (s *PowerLineService) fire(ctx context.Context, gen uint64, bbox domain.BoundingBox, callback func(domain.FeatureCollection)) {
	metrics.DebounceFired.Inc()

	key := bbox.CacheKey()
	if fc, ok := s.Cached(bbox); ok {
		metrics.CacheHits.WithLabelValues("viewport").Inc()
		if callback != nil {
			callback(fc)
		}
		return
	}
	metrics.CacheMisses.WithLabelValues("viewport").Inc()

	fc := s.source.Fetch(ctx, bbox)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		metrics.DebounceSuperseded.Inc()
		slog.Debug("discarding superseded ingestion", "cache_key", key, "generation", gen)
		return
	}
	s.cache[key] = fc
	s.mu.Unlock()

	s.publishIngest(ctx, key, bbox, fc)
	if callback != nil {
		callback(fc)
	}
}

// Ensure is the synchronous path used by request handlers: it applies
// the zoom gate and the cache, fetching and storing on a miss without
// going through the debounce window — an HTTP request is already a
// discrete event, not a stream of pans.
func (s *PowerLineService) Ensure(ctx context.Context, bbox domain.BoundingBox, zoom float64) domain.FeatureCollection {
	if zoom < s.minZoom {
		metrics.ZoomGateSkips.Inc()
		return domain.FeatureCollection{}
	}

	key := bbox.CacheKey()
	if fc, ok := s.Cached(bbox); ok {
		metrics.CacheHits.WithLabelValues("viewport").Inc()
		return fc
	}
	metrics.CacheMisses.WithLabelValues("viewport").Inc()

	fc := s.source.Fetch(ctx, bbox)

	s.mu.Lock()
	s.cache[key] = fc
	s.mu.Unlock()

	s.publishIngest(ctx, key, bbox, fc)
	return fc
}

// AboveMinZoom reports whether a zoom level passes the fetch gate.
func (s *PowerLineService) AboveMinZoom(zoom float64) bool {
	return zoom >= s.minZoom
}

// Cached returns the stored collection for a bounding box, if its
// quantized key has been ingested this session.
func (s *PowerLineService) Cached(bbox domain.BoundingBox) (domain.FeatureCollection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.cache[bbox.CacheKey()]
	return fc, ok
}

// Stop cancels any pending debounce timer.
func (s *PowerLineService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *PowerLineService) publishIngest(ctx context.Context, key string, bbox domain.BoundingBox, fc domain.FeatureCollection) {
	if s.events == nil {
		return
	}
	event := &domain.IngestEvent{
		CacheKey:  key,
		Bounds:    bbox,
		Features:  len(fc.Features),
		FetchedAt: time.Now().UTC(),
	}
	if err := s.events.PublishIngest(ctx, event); err != nil {
		slog.Warn("ingest event publish failed", "cache_key", key, "error", err)
	}
}
