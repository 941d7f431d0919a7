package usecases

import (
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/lukemenard/canopyviz/internal/core/domain"
	"github.com/lukemenard/canopyviz/internal/pkg/geospatial"
	"github.com/lukemenard/canopyviz/internal/pkg/metrics"
)

// DefaultBufferFt is the clearance distance checked around overhead
// lines when the caller does not ask for a specific one.
const DefaultBufferFt = 30.0

// ProximityService computes distances from candidate planting spots to
// power-line features and generates buffered clearance polygons.
// Evaluation is synchronous, CPU-bound, and holds no locks.
type ProximityService struct {
	bufferFt float64
}

// NewProximityService creates a ProximityService with a default buffer
// distance in feet.
func NewProximityService(bufferFt float64) *ProximityService {
	if bufferFt <= 0 {
		bufferFt = DefaultBufferFt
	}
	return &ProximityService{bufferFt: bufferFt}
}

// DefaultBuffer returns the configured default buffer distance in feet.
func (s *ProximityService) DefaultBuffer() float64 {
	return s.bufferFt
}

// Check reports whether point lies within bufferFt of any feature in
// the collection, along with the minimum distance in whole feet.
// Pass a negative bufferFt to use the configured default; zero is a
// legal buffer. An empty collection short-circuits with no geometry
// work. A feature with unusable geometry is skipped so it cannot
// suppress a true result from a sibling; only the aggregate minimum is
// reported, so equidistant features are indistinguishable by design.
func (s *ProximityService) Check(point domain.GeoPoint, collection domain.FeatureCollection, bufferFt float64) domain.ProximityResult {
	if bufferFt < 0 {
		bufferFt = s.bufferFt
	}
	if collection.Empty() {
		metrics.ProximityChecks.WithLabelValues("empty").Inc()
		return domain.ProximityResult{Near: false, DistanceFt: nil}
	}

	minMeters := math.Inf(1)
	found := false
	origin := orb.Point{point.Lng, point.Lat}

	for _, f := range collection.Features {
		d, err := geospatial.NearestDistance(origin, lineString(f))
		if err != nil {
			metrics.FeaturesSkipped.Inc()
			slog.Debug("skipping unmeasurable feature", "feature_id", f.ID, "error", err)
			continue
		}
		if d < minMeters {
			minMeters = d
			found = true
		}
	}

	if !found {
		metrics.ProximityChecks.WithLabelValues("indeterminate").Inc()
		return domain.ProximityResult{Near: false, DistanceFt: nil}
	}

	feet := minMeters / geospatial.MetersPerFoot
	rounded := math.Round(feet)
	near := feet <= bufferFt

	outcome := "clear"
	if near {
		outcome = "near"
	}
	metrics.ProximityChecks.WithLabelValues(outcome).Inc()

	return domain.ProximityResult{Near: near, DistanceFt: &rounded}
}

// BufferFeatures produces clearance polygons around every line feature,
// bufferFt converted to kilometers for the kernel. Features whose
// geometry cannot be buffered are dropped rather than aborting the
// batch. Each polygon carries the source feature's attributes plus the
// buffer distance used.
func (s *ProximityService) BufferFeatures(collection domain.FeatureCollection, bufferFt float64) *geojson.FeatureCollection {
	if bufferFt < 0 {
		bufferFt = s.bufferFt
	}
	out := geojson.NewFeatureCollection()
	if collection.Empty() {
		return out
	}

	radiusKm := bufferFt * geospatial.MetersPerFoot / 1000

	for _, f := range collection.Features {
		poly, err := geospatial.BufferLine(lineString(f), radiusKm)
		if err != nil {
			metrics.FeaturesSkipped.Inc()
			slog.Debug("dropping unbufferable feature", "feature_id", f.ID, "error", err)
			continue
		}

		bf := geojson.NewFeature(poly)
		bf.Properties = geojson.Properties{
			"id":         f.ID,
			"power_kind": string(f.PowerKind),
			"buffer_ft":  bufferFt,
		}
		if f.Voltage != "" {
			bf.Properties["voltage"] = f.Voltage
		}
		if f.Operator != "" {
			bf.Properties["operator"] = f.Operator
		}
		if f.CableCount != "" {
			bf.Properties["cables"] = f.CableCount
		}
		out.Append(bf)
	}
	return out
}

// lineString converts a feature's path into the kernel's geometry type.
func lineString(f domain.LineFeature) orb.LineString {
	ls := make(orb.LineString, len(f.Coordinates))
	for i, p := range f.Coordinates {
		ls[i] = orb.Point{p.Lng, p.Lat}
	}
	return ls
}
