package geospatial

import (
	"math"

	"github.com/paulmach/orb"
)

// arcStep is the angular resolution of buffer caps and joins. A pi/16
// step gives 16 vertices per semicircular cap, plenty for display
// geometry at city zoom.
const arcStep = math.Pi / 16

// BufferLine returns a polygon covering every location within radiusKm
// of the polyline, with rounded end caps and rounded joins. The ring is
// wound counterclockwise. Lines that collapse to a single distinct
// vertex, or carry non-finite coordinates, return ErrDegenerateGeometry.
func BufferLine(line orb.LineString, radiusKm float64) (orb.Polygon, error) {
	if radiusKm <= 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return nil, ErrDegenerateGeometry
	}
	if len(line) < 2 {
		return nil, ErrDegenerateGeometry
	}
	ref := line[0]
	if !finite(ref) {
		return nil, ErrDegenerateGeometry
	}

	// Project to a local plane and drop consecutive duplicate vertices.
	pts := make([]orb.Point, 0, len(line))
	for _, p := range line {
		if !finite(p) {
			return nil, ErrDegenerateGeometry
		}
		q := toLocalPlane(p, ref)
		if len(pts) > 0 && samePoint(q, pts[len(pts)-1]) {
			continue
		}
		pts = append(pts, q)
	}
	if len(pts) < 2 {
		return nil, ErrDegenerateGeometry
	}

	r := radiusKm * 1000 // meters

	var ring orb.Ring
	appendOffsetSide(&ring, pts, r)

	// End cap: sweep half a circle around the last vertex, through the
	// direction of travel.
	last := pts[len(pts)-1]
	endAngle := segmentAngle(pts[len(pts)-2], last)
	appendArc(&ring, last, endAngle-math.Pi/2, endAngle+math.Pi/2, r)

	reversed := make([]orb.Point, len(pts))
	for i, p := range pts {
		reversed[len(pts)-1-i] = p
	}
	appendOffsetSide(&ring, reversed, r)

	// Start cap.
	startAngle := segmentAngle(pts[1], pts[0])
	appendArc(&ring, pts[0], startAngle-math.Pi/2, startAngle+math.Pi/2, r)

	ring = append(ring, ring[0]) // close

	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		out[i] = fromLocalPlane(p, ref)
	}
	return orb.Polygon{out}, nil
}

// appendOffsetSide walks the right-hand offset of the path, inserting a
// rounded join at each interior vertex.
func appendOffsetSide(ring *orb.Ring, pts []orb.Point, r float64) {
	for i := 0; i < len(pts)-1; i++ {
		angle := segmentAngle(pts[i], pts[i+1])
		normal := angle - math.Pi/2

		*ring = append(*ring, offset(pts[i], normal, r))
		*ring = append(*ring, offset(pts[i+1], normal, r))

		if i+2 < len(pts) {
			next := segmentAngle(pts[i+1], pts[i+2]) - math.Pi/2
			appendArc(ring, pts[i+1], normal, next, r)
		}
	}
}

// appendArc interpolates points on a circle around center from the
// `from` angle to `to`, taking the shorter rotation.
func appendArc(ring *orb.Ring, center orb.Point, from, to, r float64) {
	delta := math.Mod(to-from, 2*math.Pi)
	if delta > math.Pi {
		delta -= 2 * math.Pi
	} else if delta < -math.Pi {
		delta += 2 * math.Pi
	}
	steps := int(math.Ceil(math.Abs(delta) / arcStep))
	for s := 1; s < steps; s++ {
		a := from + delta*float64(s)/float64(steps)
		*ring = append(*ring, offset(center, a, r))
	}
}

func offset(p orb.Point, angle, r float64) orb.Point {
	return orb.Point{p[0] + r*math.Cos(angle), p[1] + r*math.Sin(angle)}
}

func segmentAngle(a, b orb.Point) float64 {
	return math.Atan2(b[1]-a[1], b[0]-a[0])
}

func samePoint(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) < 1e-9 && math.Abs(a[1]-b[1]) < 1e-9
}
