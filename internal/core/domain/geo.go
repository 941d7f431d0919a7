package domain

import "fmt"

// GeoPoint is a geographic coordinate (WGS 84). Immutable value.
type GeoPoint struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// PowerKind classifies an overhead power way from OpenStreetMap.
type PowerKind string

const (
	PowerLine      PowerKind = "line"
	PowerMinorLine PowerKind = "minor_line"
	PowerCable     PowerKind = "cable"
)

// LineFeature is a normalized power-line way. Coordinates preserve the
// ingested path order; duplicate points are allowed.
type LineFeature struct {
	ID          int64      `json:"id"`
	PowerKind   PowerKind  `json:"power_kind"`
	Voltage     string     `json:"voltage,omitempty"`
	Operator    string     `json:"operator,omitempty"`
	CableCount  string     `json:"cables,omitempty"`
	Coordinates []GeoPoint `json:"coordinates"`
}

// FeatureCollection is the unit of power-line data that gets cached per
// viewport and evaluated for proximity.
type FeatureCollection struct {
	Features []LineFeature `json:"features"`
}

// Empty reports whether the collection holds no features.
func (fc FeatureCollection) Empty() bool {
	return len(fc.Features) == 0
}

// BoundingBox is an axis-aligned viewport rectangle, south < north and
// west < east. No antimeridian handling.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// CacheKey quantizes each bound to 4 decimal degrees (~11 m). Boxes that
// differ only below that precision collide on purpose, trading slight
// staleness for a higher cache hit rate.
func (b BoundingBox) CacheKey() string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", b.South, b.West, b.North, b.East)
}

// ProximityResult is the aggregate answer to "is this point near any
// overhead line". DistanceFt is nil when the evaluated collection was
// empty or no feature produced a usable distance.
type ProximityResult struct {
	Near       bool     `json:"near"`
	DistanceFt *float64 `json:"distance_ft"`
}
