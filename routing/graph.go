package routing

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrNodeNotFound  = errors.New("routing: node not found in graph")
	ErrEdgeNotFound  = errors.New("routing: edge not found in graph")
	ErrDuplicateEdge = errors.New("routing: edge key already used")
	ErrInvalidGraph  = errors.New("routing: invalid graph")
)

// Node represents an intersection in the road network.
type Node struct {
	ID        int64   // Unique identifier for the node
	Latitude  float64 // y
	Longitude float64 // x
}

// Coordinate returns the node position in (lat, lon) order.
func (n *Node) Coordinate() Coordinate {
	return Coordinate{Lat: n.Latitude, Lon: n.Longitude}
}

// Edge represents one directed road between two nodes. Parallel roads between
// the same ordered pair of nodes are told apart by Key.
type Edge struct {
	FromID   int64
	ToID     int64
	Key      int
	Length   float64      // meters
	Geometry []Coordinate // optional road curve, endpoints included
	Name     string
}

// Ref returns the identity of the edge inside its graph.
func (e *Edge) Ref() EdgeRef {
	return EdgeRef{FromID: e.FromID, ToID: e.ToID, Key: e.Key}
}

// EdgeRef identifies an edge by its endpoints and key.
type EdgeRef struct {
	FromID int64
	ToID   int64
	Key    int
}

func (r EdgeRef) String() string {
	return fmt.Sprintf("%d->%d#%d", r.FromID, r.ToID, r.Key)
}

// Graph is a directed multigraph of road nodes. Edges are indexed by their
// source node, in insertion order.
type Graph struct {
	Nodes map[int64]*Node   // Map of node IDs to node objects
	Edges map[int64][]*Edge // Map of node IDs to outgoing edges
}

func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[int64]*Node),
		Edges: make(map[int64][]*Edge),
	}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(id int64, lat, lon float64) *Node {
	n := &Node{ID: id, Latitude: lat, Longitude: lon}
	g.Nodes[id] = n
	return n
}

func (g *Graph) HasNode(id int64) bool {
	_, ok := g.Nodes[id]
	return ok
}

// AddEdge appends an edge from -> to with the next free key for that pair.
func (g *Graph) AddEdge(from, to int64, length float64, geometry []Coordinate) (*Edge, error) {
	key := 0
	for _, e := range g.Edges[from] {
		if e.ToID == to && e.Key >= key {
			key = e.Key + 1
		}
	}
	return g.AddEdgeWithKey(from, to, key, length, geometry)
}

// AddEdgeWithKey appends an edge with an explicit key. Both endpoints must
// already exist.
func (g *Graph) AddEdgeWithKey(from, to int64, key int, length float64, geometry []Coordinate) (*Edge, error) {
	if !g.HasNode(from) {
		return nil, fmt.Errorf("add edge %d->%d: source %w", from, to, ErrNodeNotFound)
	}
	if !g.HasNode(to) {
		return nil, fmt.Errorf("add edge %d->%d: target %w", from, to, ErrNodeNotFound)
	}
	for _, e := range g.Edges[from] {
		if e.ToID == to && e.Key == key {
			return nil, fmt.Errorf("add edge %d->%d key %d: %w", from, to, key, ErrDuplicateEdge)
		}
	}
	e := &Edge{FromID: from, ToID: to, Key: key, Length: length, Geometry: geometry}
	g.Edges[from] = append(g.Edges[from], e)
	return e, nil
}

// RemoveEdge deletes exactly one edge. Nodes are left in place.
func (g *Graph) RemoveEdge(ref EdgeRef) error {
	edges := g.Edges[ref.FromID]
	for i, e := range edges {
		if e.ToID == ref.ToID && e.Key == ref.Key {
			g.Edges[ref.FromID] = append(edges[:i:i], edges[i+1:]...)
			if len(g.Edges[ref.FromID]) == 0 {
				delete(g.Edges, ref.FromID)
			}
			return nil
		}
	}
	return fmt.Errorf("remove edge %s: %w", ref, ErrEdgeNotFound)
}

func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

func (g *Graph) EdgeCount() int {
	total := 0
	for _, edges := range g.Edges {
		total += len(edges)
	}
	return total
}

// EdgeList returns every edge ordered by (from, to, key).
func (g *Graph) EdgeList() []*Edge {
	out := make([]*Edge, 0, g.EdgeCount())
	for _, edges := range g.Edges {
		out = append(out, edges...)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FromID != b.FromID {
			return a.FromID < b.FromID
		}
		if a.ToID != b.ToID {
			return a.ToID < b.ToID
		}
		return a.Key < b.Key
	})
	return out
}

// EdgesBetween returns all parallel edges from -> to.
func (g *Graph) EdgesBetween(from, to int64) []*Edge {
	var out []*Edge
	for _, e := range g.Edges[from] {
		if e.ToID == to {
			out = append(out, e)
		}
	}
	return out
}

// BestEdge picks the edge used for the hop from -> to: shortest length, then
// lowest key. Path search and route assembly both go through here so the
// reported distance always matches the traversed edges.
func (g *Graph) BestEdge(from, to int64) (*Edge, bool) {
	var best *Edge
	for _, e := range g.Edges[from] {
		if e.ToID != to {
			continue
		}
		if best == nil || e.Length < best.Length || (e.Length == best.Length && e.Key < best.Key) {
			best = e
		}
	}
	return best, best != nil
}

// Segment returns the polyline of an edge: its stored geometry when it has at
// least two points, otherwise the straight line between its endpoints.
func (g *Graph) Segment(e *Edge) ([]Coordinate, error) {
	if len(e.Geometry) >= 2 {
		return e.Geometry, nil
	}
	from, ok := g.Nodes[e.FromID]
	if !ok {
		return nil, fmt.Errorf("segment %s: source %w", e.Ref(), ErrNodeNotFound)
	}
	to, ok := g.Nodes[e.ToID]
	if !ok {
		return nil, fmt.Errorf("segment %s: target %w", e.Ref(), ErrNodeNotFound)
	}
	return []Coordinate{from.Coordinate(), to.Coordinate()}, nil
}

// Validate checks the invariants every network source must satisfy.
func (g *Graph) Validate() error {
	for id, n := range g.Nodes {
		if n == nil || n.ID != id {
			return fmt.Errorf("%w: node entry %d is inconsistent", ErrInvalidGraph, id)
		}
		if !n.Coordinate().Valid() {
			return fmt.Errorf("%w: node %d has invalid coordinates (%f, %f)", ErrInvalidGraph, id, n.Latitude, n.Longitude)
		}
	}
	for from, edges := range g.Edges {
		for _, e := range edges {
			if e.FromID != from {
				return fmt.Errorf("%w: edge %s indexed under node %d", ErrInvalidGraph, e.Ref(), from)
			}
			if !g.HasNode(e.FromID) || !g.HasNode(e.ToID) {
				return fmt.Errorf("%w: edge %s references a missing node", ErrInvalidGraph, e.Ref())
			}
			if e.Length < 0 || math.IsNaN(e.Length) || math.IsInf(e.Length, 0) {
				return fmt.Errorf("%w: edge %s has length %f", ErrInvalidGraph, e.Ref(), e.Length)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for id, n := range g.Nodes {
		cp := *n
		c.Nodes[id] = &cp
	}
	for from, edges := range g.Edges {
		out := make([]*Edge, len(edges))
		for i, e := range edges {
			cp := *e
			if e.Geometry != nil {
				cp.Geometry = append([]Coordinate(nil), e.Geometry...)
			}
			out[i] = &cp
		}
		c.Edges[from] = out
	}
	return c
}
