package geospatial

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	earthRadiusKm = 6371.0

	// Meters per degree of latitude; longitude is scaled by cos(lat).
	metersPerDegree = 111320.0

	// MetersPerFoot converts the imperial buffer distances used by the
	// UI into the metric units all geometry math runs in.
	MetersPerFoot = 0.3048
)

// ErrDegenerateGeometry is returned for inputs no distance or buffer can
// be computed from: fewer than two distinct vertices, or non-finite
// coordinates.
var ErrDegenerateGeometry = errors.New("geospatial: degenerate geometry")

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / metersPerDegree
	lonDelta := radiusMeters / (metersPerDegree * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// NearestDistance returns the planar distance in meters from point to the
// nearest location on line. The line is projected onto a local
// equirectangular plane centered on point before measuring, which is
// accurate to well under the 4-decimal-degree quantization at city and
// neighborhood extents.
func NearestDistance(point orb.Point, line orb.LineString) (float64, error) {
	if err := validate(point, line); err != nil {
		return 0, err
	}

	projected := make(orb.LineString, len(line))
	for i, p := range line {
		projected[i] = toLocalPlane(p, point)
	}
	return planar.DistanceFrom(projected, orb.Point{0, 0}), nil
}

// toLocalPlane maps a lng/lat point to meters on a plane centered at ref.
func toLocalPlane(p, ref orb.Point) orb.Point {
	x := (p[0] - ref[0]) * metersPerDegree * math.Cos(toRad(ref[1]))
	y := (p[1] - ref[1]) * metersPerDegree
	return orb.Point{x, y}
}

// fromLocalPlane is the inverse of toLocalPlane.
func fromLocalPlane(p, ref orb.Point) orb.Point {
	lng := ref[0] + p[0]/(metersPerDegree*math.Cos(toRad(ref[1])))
	lat := ref[1] + p[1]/metersPerDegree
	return orb.Point{lng, lat}
}

func validate(point orb.Point, line orb.LineString) error {
	if len(line) < 2 {
		return ErrDegenerateGeometry
	}
	if !finite(point) {
		return ErrDegenerateGeometry
	}
	for _, p := range line {
		if !finite(p) {
			return ErrDegenerateGeometry
		}
	}
	return nil
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) &&
		!math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
