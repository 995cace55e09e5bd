package hazard

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"flood-route-server/routing"
)

// ErrMalformedZone marks a zone that cannot form a polygon. Filter skips such
// zones and keeps going.
var ErrMalformedZone = errors.New("hazard: malformed zone")

// Zone is a flood polygon as ordered (lat, lon) vertices. The ring may be
// left open; it is closed during normalization.
type Zone []routing.Coordinate

// NormalizeZone validates z and returns it as a closed orb ring. A zone needs
// at least three distinct, finite, in-range vertices.
func NormalizeZone(z Zone) (orb.Ring, error) {
	if len(z) == 0 {
		return nil, fmt.Errorf("%w: no vertices", ErrMalformedZone)
	}

	distinct := make(map[routing.Coordinate]struct{}, len(z))
	for i, c := range z {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: vertex %d (%v, %v) is not a valid coordinate", ErrMalformedZone, i, c.Lat, c.Lon)
		}
		distinct[c] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, fmt.Errorf("%w: %d distinct vertices, need at least 3", ErrMalformedZone, len(distinct))
	}

	ring := make(orb.Ring, 0, len(z)+1)
	for _, c := range z {
		ring = append(ring, toPoint(c))
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring, nil
}
