// Package hazard removes road edges that touch flood zones.
package hazard

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"flood-route-server/routing"
)

// toPoint converts a (lat, lon) coordinate to the planar X=lon, Y=lat axis
// order used by orb.
func toPoint(c routing.Coordinate) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

func toLineString(coords []routing.Coordinate) orb.LineString {
	ls := make(orb.LineString, len(coords))
	for i, c := range coords {
		ls[i] = toPoint(c)
	}
	return ls
}

// Intersects reports whether any part of line lies on the boundary or inside
// poly, or crosses its boundary. Touching the boundary counts.
func Intersects(line orb.LineString, poly orb.Polygon) bool {
	if len(line) == 0 || len(poly) == 0 || len(poly[0]) == 0 {
		return false
	}
	if !line.Bound().Intersects(poly.Bound()) {
		return false
	}

	for _, p := range line {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}

	for i := 1; i < len(line); i++ {
		for _, ring := range poly {
			if segmentCrossesRing(line[i-1], line[i], ring) {
				return true
			}
		}
	}
	return false
}

func segmentCrossesRing(a, b orb.Point, ring orb.Ring) bool {
	n := len(ring)
	for j := 0; j < n; j++ {
		c := ring[j]
		d := ring[(j+1)%n]
		if c == d {
			continue
		}
		if segmentsIntersect(a, b, c, d) {
			return true
		}
	}
	return false
}

// segmentsIntersect treats shared endpoints and collinear overlap as
// intersections.
func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := direction(p3, p4, p1)
	d2 := direction(p3, p4, p2)
	d3 := direction(p1, p2, p3)
	d4 := direction(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if d2 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, p4) {
		return true
	}
	return false
}

// direction is the cross product (c - a) x (b - a).
func direction(a, b, c orb.Point) float64 {
	return (c[0]-a[0])*(b[1]-a[1]) - (b[0]-a[0])*(c[1]-a[1])
}

// onSegment assumes c is collinear with a-b.
func onSegment(a, b, c orb.Point) bool {
	return c[0] >= min(a[0], b[0]) && c[0] <= max(a[0], b[0]) &&
		c[1] >= min(a[1], b[1]) && c[1] <= max(a[1], b[1])
}
