// Package network loads the drivable road graph around a point from one of
// several backends.
package network

import (
	"context"
	"errors"

	"flood-route-server/routing"
)

// ErrUpstream wraps failures reported by a remote network backend.
var ErrUpstream = errors.New("network: upstream source failed")

// Source returns a fresh road graph covering radiusMeters around center. The
// caller owns the returned graph and may mutate it.
type Source interface {
	Fetch(ctx context.Context, center routing.Coordinate, radiusMeters float64) (*routing.Graph, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, center routing.Coordinate, radiusMeters float64) (*routing.Graph, error)

func (f SourceFunc) Fetch(ctx context.Context, center routing.Coordinate, radiusMeters float64) (*routing.Graph, error) {
	return f(ctx, center, radiusMeters)
}

// Crop copies the part of g within radiusMeters of center. Edges survive when
// both endpoints do, with their keys unchanged. A radius <= 0 copies the
// whole graph.
func Crop(g *routing.Graph, center routing.Coordinate, radiusMeters float64) *routing.Graph {
	if radiusMeters <= 0 {
		return g.Clone()
	}

	out := routing.NewGraph()
	for id, n := range g.Nodes {
		if routing.HaversineDistance(center, n.Coordinate()) <= radiusMeters {
			out.AddNode(id, n.Latitude, n.Longitude)
		}
	}
	for from, edges := range g.Edges {
		if !out.HasNode(from) {
			continue
		}
		for _, e := range edges {
			if !out.HasNode(e.ToID) {
				continue
			}
			var geom []routing.Coordinate
			if e.Geometry != nil {
				geom = append([]routing.Coordinate(nil), e.Geometry...)
			}
			cp, err := out.AddEdgeWithKey(e.FromID, e.ToID, e.Key, e.Length, geom)
			if err != nil {
				continue
			}
			cp.Name = e.Name
		}
	}
	return out
}
