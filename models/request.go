package models

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"flood-route-server/hazard"
	"flood-route-server/routing"
)

// RouteRequest is the body of POST /api/route. Points are [lat, lng].
type RouteRequest struct {
	Start             []float64         `json:"start" binding:"required,len=2"`
	End               []float64         `json:"end" binding:"required,len=2"`
	FloodZones        []json.RawMessage `json:"flood_zones,omitempty"`
	FloodZonesGeoJSON json.RawMessage   `json:"flood_zones_geojson,omitempty"`
	RadiusMeters      float64           `json:"radius_m" binding:"gte=0"`
}

func (r RouteRequest) StartCoordinate() routing.Coordinate {
	return routing.Coordinate{Lat: r.Start[0], Lon: r.Start[1]}
}

func (r RouteRequest) EndCoordinate() routing.Coordinate {
	return routing.Coordinate{Lat: r.End[0], Lon: r.End[1]}
}

// Zones collects flood_zones followed by the polygons of flood_zones_geojson.
// A zone that cannot be decoded becomes an empty zone so the filter reports
// it as skipped at its position.
func (r RouteRequest) Zones() ([]hazard.Zone, error) {
	zones := make([]hazard.Zone, 0, len(r.FloodZones))
	for _, raw := range r.FloodZones {
		zones = append(zones, decodeZone(raw))
	}

	if len(r.FloodZonesGeoJSON) == 0 || string(r.FloodZonesGeoJSON) == "null" {
		return zones, nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(r.FloodZonesGeoJSON)
	if err != nil {
		return nil, fmt.Errorf("flood_zones_geojson: %w", err)
	}
	for _, f := range fc.Features {
		zones = append(zones, zonesFromGeometry(f.Geometry)...)
	}
	return zones, nil
}

// decodeZone accepts a ring of [lat, lng] pairs, or that ring wrapped once.
func decodeZone(raw json.RawMessage) hazard.Zone {
	var ring [][]float64
	if err := json.Unmarshal(raw, &ring); err != nil {
		var wrapped [][][]float64
		if err := json.Unmarshal(raw, &wrapped); err != nil || len(wrapped) == 0 {
			return hazard.Zone{}
		}
		ring = wrapped[0]
	}

	zone := make(hazard.Zone, 0, len(ring))
	for _, p := range ring {
		if len(p) != 2 {
			return hazard.Zone{}
		}
		zone = append(zone, routing.Coordinate{Lat: p[0], Lon: p[1]})
	}
	return zone
}

// zonesFromGeometry keeps the outer ring of each polygon; holes are ignored.
func zonesFromGeometry(geom orb.Geometry) []hazard.Zone {
	switch g := geom.(type) {
	case orb.Polygon:
		return []hazard.Zone{outerRing(g)}
	case orb.MultiPolygon:
		zones := make([]hazard.Zone, 0, len(g))
		for _, p := range g {
			zones = append(zones, outerRing(p))
		}
		return zones
	default:
		return []hazard.Zone{{}}
	}
}

func outerRing(p orb.Polygon) hazard.Zone {
	if len(p) == 0 {
		return hazard.Zone{}
	}
	zone := make(hazard.Zone, 0, len(p[0]))
	for _, pt := range p[0] {
		zone = append(zone, routing.Coordinate{Lat: pt.Lat(), Lon: pt.Lon()})
	}
	return zone
}
