package routing

import (
	"errors"
	"math"
)

var ErrNoNodeFound = errors.New("routing: no nodes found in graph")

// NearestNode returns the node closest to coord by great-circle distance and
// that distance in meters. Equidistant nodes resolve to the smaller ID.
func NearestNode(coord Coordinate, graph *Graph) (int64, float64, error) {
	var nearestNode int64
	minDistance := math.Inf(1)
	found := false

	for nodeID, node := range graph.Nodes {
		dist := HaversineDistance(coord, node.Coordinate())
		if !found || dist < minDistance || (dist == minDistance && nodeID < nearestNode) {
			minDistance = dist
			nearestNode = nodeID
			found = true
		}
	}

	if !found {
		return 0, 0, ErrNoNodeFound
	}
	return nearestNode, minDistance, nil
}
