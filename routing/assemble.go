package routing

import (
	"errors"
	"fmt"
)

var ErrBrokenPath = errors.New("routing: path does not follow graph edges")

// Route is the caller-facing result of a routing request.
type Route struct {
	Coordinates    []Coordinate // (lat, lon) per path node
	DistanceMeters float64
}

// Assemble walks a path and produces its coordinates and total length. Each
// hop is charged the length of BestEdge, the same edge ShortestPath relaxed.
func Assemble(graph *Graph, path Path) (Route, error) {
	if len(path.Nodes) == 0 {
		return Route{}, fmt.Errorf("empty path: %w", ErrBrokenPath)
	}

	coords := make([]Coordinate, 0, len(path.Nodes))
	for _, id := range path.Nodes {
		node, ok := graph.Nodes[id]
		if !ok {
			return Route{}, fmt.Errorf("node %d: %w", id, ErrBrokenPath)
		}
		coords = append(coords, node.Coordinate())
	}

	total := 0.0
	for i := 1; i < len(path.Nodes); i++ {
		u, v := path.Nodes[i-1], path.Nodes[i]
		edge, ok := graph.BestEdge(u, v)
		if !ok {
			return Route{}, fmt.Errorf("no edge %d->%d: %w", u, v, ErrBrokenPath)
		}
		total += edge.Length
	}

	return Route{Coordinates: coords, DistanceMeters: total}, nil
}

// FormatDistance renders meters as kilometers with two decimals.
func FormatDistance(meters float64) string {
	return fmt.Sprintf("%.2f km", meters/1000)
}
