package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb/encoding/wkt"

	"flood-route-server/routing"
)

// nodeLinkGraph is the NetworkX/OSMnx node-link export. Some exports nest the
// graph under "graph" next to a metadata block; newer NetworkX writes "edges"
// instead of "links".
type nodeLinkGraph struct {
	Directed   bool            `json:"directed"`
	Multigraph bool            `json:"multigraph"`
	Nodes      []nodeLinkNode  `json:"nodes"`
	Links      []nodeLinkEdge  `json:"links"`
	Edges      []nodeLinkEdge  `json:"edges"`
	Graph      json.RawMessage `json:"graph"`
}

type nodeLinkNode struct {
	Y   float64     `json:"y"`
	X   float64     `json:"x"`
	Lon float64     `json:"lon"`
	Lat float64     `json:"lat"`
	ID  interface{} `json:"id"` // Can be int64 or string
}

type nodeLinkEdge struct {
	Name     interface{} `json:"name"` // Can be string or array
	Length   *float64    `json:"length"`
	Geometry interface{} `json:"geometry"` // WKT string or [[x, y], ...]
	Source   interface{} `json:"source"`   // Can be int64 or string
	Target   interface{} `json:"target"`   // Can be int64 or string
	Key      *int        `json:"key"`
}

func convertID(id interface{}) (int64, error) {
	switch v := id.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("unsupported ID type: %T", id)
	}
}

func convertToString(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			parts = append(parts, fmt.Sprintf("%v", e))
		}
		return strings.Join(parts, ",")
	case json.Number:
		return v.String()
	default:
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	}
}

func convertNumber(val interface{}) (float64, error) {
	switch v := val.(type) {
	case json.Number:
		return v.Float64()
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("unsupported coordinate type: %T", val)
	}
}

// parseGeometry accepts a WKT LINESTRING or an array of [x, y] pairs.
func parseGeometry(val interface{}) ([]routing.Coordinate, error) {
	switch v := val.(type) {
	case nil:
		return nil, nil
	case string:
		ls, err := wkt.UnmarshalLineString(v)
		if err != nil {
			return nil, fmt.Errorf("parse WKT geometry: %w", err)
		}
		out := make([]routing.Coordinate, len(ls))
		for i, p := range ls {
			out[i] = routing.Coordinate{Lat: p.Lat(), Lon: p.Lon()}
		}
		return out, nil
	case []interface{}:
		out := make([]routing.Coordinate, 0, len(v))
		for _, raw := range v {
			pair, ok := raw.([]interface{})
			if !ok || len(pair) < 2 {
				return nil, fmt.Errorf("geometry point %v is not an [x, y] pair", raw)
			}
			x, err := convertNumber(pair[0])
			if err != nil {
				return nil, err
			}
			y, err := convertNumber(pair[1])
			if err != nil {
				return nil, err
			}
			out = append(out, routing.Coordinate{Lat: y, Lon: x})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type: %T", val)
	}
}

// ParseNodeLink builds a graph from node-link JSON. Node positions come from
// x/y (falling back to lon/lat); edges missing a length are measured along
// their geometry.
func ParseNodeLink(data []byte) (*routing.Graph, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc nodeLinkGraph
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse node-link JSON: %w", err)
	}
	if len(doc.Nodes) == 0 && len(doc.Graph) > 0 && doc.Graph[0] == '{' {
		var nested nodeLinkGraph
		inner := json.NewDecoder(bytes.NewReader(doc.Graph))
		inner.UseNumber()
		if err := inner.Decode(&nested); err == nil && len(nested.Nodes) > 0 {
			doc = nested
		}
	}

	graph := routing.NewGraph()
	for _, jsonNode := range doc.Nodes {
		nodeID, err := convertID(jsonNode.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to convert node ID (%v): %w", jsonNode.ID, err)
		}

		lat := jsonNode.Y
		lon := jsonNode.X
		if lat == 0 && lon == 0 {
			lat = jsonNode.Lat
			lon = jsonNode.Lon
		}
		graph.AddNode(nodeID, lat, lon)
	}

	links := doc.Links
	if len(links) == 0 {
		links = doc.Edges
	}
	for i, jsonEdge := range links {
		sourceID, err := convertID(jsonEdge.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to convert source ID (%v): %w", jsonEdge.Source, err)
		}
		targetID, err := convertID(jsonEdge.Target)
		if err != nil {
			return nil, fmt.Errorf("failed to convert target ID (%v): %w", jsonEdge.Target, err)
		}
		geometry, err := parseGeometry(jsonEdge.Geometry)
		if err != nil {
			return nil, fmt.Errorf("link %d (%d->%d): %w", i, sourceID, targetID, err)
		}

		var length float64
		if jsonEdge.Length != nil {
			length = *jsonEdge.Length
		} else {
			length = measure(graph, sourceID, targetID, geometry)
		}

		var edge *routing.Edge
		if jsonEdge.Key != nil {
			edge, err = graph.AddEdgeWithKey(sourceID, targetID, *jsonEdge.Key, length, geometry)
		} else {
			edge, err = graph.AddEdge(sourceID, targetID, length, geometry)
		}
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		edge.Name = convertToString(jsonEdge.Name)
	}

	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return graph, nil
}

func measure(g *routing.Graph, from, to int64, geometry []routing.Coordinate) float64 {
	pts := geometry
	if len(pts) < 2 {
		a, okA := g.Nodes[from]
		b, okB := g.Nodes[to]
		if !okA || !okB {
			return 0
		}
		pts = []routing.Coordinate{a.Coordinate(), b.Coordinate()}
	}
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += routing.HaversineDistance(pts[i-1], pts[i])
	}
	return total
}

// LoadGraphFile reads a gob snapshot (.gob) or node-link JSON file.
func LoadGraphFile(path string) (*routing.Graph, error) {
	if strings.EqualFold(filepath.Ext(path), ".gob") {
		return LoadSnapshot(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read graph file: %w", err)
	}
	g, err := ParseNodeLink(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// FileSource serves crops of a graph file loaded once on first use.
type FileSource struct {
	path string

	once  sync.Once
	graph *routing.Graph
	err   error
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Fetch(ctx context.Context, center routing.Coordinate, radiusMeters float64) (*routing.Graph, error) {
	s.once.Do(func() {
		s.graph, s.err = LoadGraphFile(s.path)
	})
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Crop(s.graph, center, radiusMeters), nil
}
