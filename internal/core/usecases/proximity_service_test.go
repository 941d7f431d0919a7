package usecases_test

import (
	"math"
	"testing"

	"github.com/lukemenard/canopyviz/internal/core/domain"
	"github.com/lukemenard/canopyviz/internal/core/usecases"
)

func line(id int64, pts ...domain.GeoPoint) domain.LineFeature {
	return domain.LineFeature{ID: id, PowerKind: domain.PowerLine, Coordinates: pts}
}

func TestCheck_EmptyCollection(t *testing.T) {
	svc := usecases.NewProximityService(0)

	for _, bufferFt := range []float64{0, 30, 5000} {
		res := svc.Check(domain.GeoPoint{Lng: -122.4, Lat: 37.78}, domain.FeatureCollection{}, bufferFt)
		if res.Near {
			t.Errorf("bufferFt=%f: empty collection must not be near", bufferFt)
		}
		if res.DistanceFt != nil {
			t.Errorf("bufferFt=%f: empty collection must report nil distance", bufferFt)
		}
	}
}

func TestCheck_PointOnLine(t *testing.T) {
	svc := usecases.NewProximityService(0)

	fc := domain.FeatureCollection{Features: []domain.LineFeature{
		line(1, domain.GeoPoint{Lng: -122.40, Lat: 37.78}, domain.GeoPoint{Lng: -122.38, Lat: 37.78}),
	}}
	// On the path, including bufferFt = 0.
	for _, bufferFt := range []float64{0, 1, 30} {
		res := svc.Check(domain.GeoPoint{Lng: -122.39, Lat: 37.78}, fc, bufferFt)
		if !res.Near {
			t.Errorf("bufferFt=%f: point on line must be near", bufferFt)
		}
		if res.DistanceFt == nil || *res.DistanceFt != 0 {
			t.Errorf("bufferFt=%f: expected distance 0, got %v", bufferFt, res.DistanceFt)
		}
	}
}

func TestCheck_DistanceAndThreshold(t *testing.T) {
	svc := usecases.NewProximityService(0)

	fc := domain.FeatureCollection{Features: []domain.LineFeature{
		line(1, domain.GeoPoint{Lng: -122.40, Lat: 37.78}, domain.GeoPoint{Lng: -122.38, Lat: 37.78}),
	}}
	// 0.0001 deg of latitude north of the line: ~11.1 m ≈ 37 ft.
	point := domain.GeoPoint{Lng: -122.39, Lat: 37.7801}

	res := svc.Check(point, fc, 30)
	if res.Near {
		t.Error("37 ft away should not be near with a 30 ft buffer")
	}
	if res.DistanceFt == nil || math.Abs(*res.DistanceFt-37) > 1 {
		t.Errorf("expected ~37 ft, got %v", res.DistanceFt)
	}

	res = svc.Check(point, fc, 40)
	if !res.Near {
		t.Error("37 ft away should be near with a 40 ft buffer")
	}
}

func TestCheck_BufferMonotonicity(t *testing.T) {
	svc := usecases.NewProximityService(0)

	fc := domain.FeatureCollection{Features: []domain.LineFeature{
		line(1, domain.GeoPoint{Lng: -122.40, Lat: 37.78}, domain.GeoPoint{Lng: -122.38, Lat: 37.78}),
	}}
	point := domain.GeoPoint{Lng: -122.39, Lat: 37.7802}

	wasNear := false
	for bufferFt := 0.0; bufferFt <= 200; bufferFt += 10 {
		res := svc.Check(point, fc, bufferFt)
		if wasNear && !res.Near {
			t.Fatalf("bufferFt=%f: growing the buffer turned near back off", bufferFt)
		}
		wasNear = res.Near
	}
	if !wasNear {
		t.Error("a 200 ft buffer should cover a point ~74 ft from the line")
	}
}

func TestCheck_DegenerateFeatureSkipped(t *testing.T) {
	svc := usecases.NewProximityService(0)

	fc := domain.FeatureCollection{Features: []domain.LineFeature{
		// Single-vertex feature: unmeasurable, must be skipped.
		line(1, domain.GeoPoint{Lng: -122.39, Lat: 37.79}),
		// Valid sibling right underneath the query point.
		line(2, domain.GeoPoint{Lng: -122.40, Lat: 37.78}, domain.GeoPoint{Lng: -122.38, Lat: 37.78}),
	}}

	res := svc.Check(domain.GeoPoint{Lng: -122.39, Lat: 37.78}, fc, 30)
	if !res.Near || res.DistanceFt == nil || *res.DistanceFt != 0 {
		t.Errorf("degenerate sibling must not suppress the true result, got %+v", res)
	}
}

func TestCheck_AllFeaturesDegenerate(t *testing.T) {
	svc := usecases.NewProximityService(0)

	fc := domain.FeatureCollection{Features: []domain.LineFeature{
		line(1, domain.GeoPoint{Lng: -122.39, Lat: 37.79}),
	}}

	res := svc.Check(domain.GeoPoint{Lng: -122.39, Lat: 37.78}, fc, 30)
	if res.Near || res.DistanceFt != nil {
		t.Errorf("all-degenerate collection must report {false, nil}, got %+v", res)
	}
}

func TestBufferFeatures(t *testing.T) {
	svc := usecases.NewProximityService(0)

	fc := domain.FeatureCollection{Features: []domain.LineFeature{
		{
			ID:          7,
			PowerKind:   domain.PowerCable,
			Voltage:     "11000",
			Coordinates: []domain.GeoPoint{{Lng: -122.40, Lat: 37.78}, {Lng: -122.39, Lat: 37.78}},
		},
		// Unbufferable: dropped, not fatal.
		line(8, domain.GeoPoint{Lng: -122.39, Lat: 37.79}),
	}}

	out := svc.BufferFeatures(fc, 30)
	if len(out.Features) != 1 {
		t.Fatalf("expected 1 buffered polygon, got %d", len(out.Features))
	}

	f := out.Features[0]
	if f.Geometry.GeoJSONType() != "Polygon" {
		t.Errorf("expected Polygon, got %s", f.Geometry.GeoJSONType())
	}
	if f.Properties["buffer_ft"] != 30.0 {
		t.Errorf("buffer_ft property: got %v", f.Properties["buffer_ft"])
	}
	if f.Properties["power_kind"] != "cable" {
		t.Errorf("power_kind property: got %v", f.Properties["power_kind"])
	}
	if f.Properties["voltage"] != "11000" {
		t.Errorf("voltage property: got %v", f.Properties["voltage"])
	}
}

func TestBufferFeatures_EmptyInput(t *testing.T) {
	svc := usecases.NewProximityService(0)

	out := svc.BufferFeatures(domain.FeatureCollection{}, 30)
	if len(out.Features) != 0 {
		t.Errorf("empty input must produce empty output, got %d features", len(out.Features))
	}
}
