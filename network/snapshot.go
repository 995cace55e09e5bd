package network

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"flood-route-server/routing"
)

const snapshotVersion = 1

// Snapshot structures for pre-loaded routing data (the stored GOB format)
type snapshotNode struct {
	ID        int64
	Latitude  float64
	Longitude float64
}

type snapshotEdge struct {
	FromID   int64
	ToID     int64
	Key      int
	Length   float64
	Geometry []routing.Coordinate
	Name     string
}

type snapshot struct {
	Version int
	Nodes   []snapshotNode
	Edges   []snapshotEdge
}

// EncodeSnapshot writes g as a gob snapshot.
func EncodeSnapshot(w io.Writer, g *routing.Graph) error {
	snap := snapshot{
		Version: snapshotVersion,
		Nodes:   make([]snapshotNode, 0, len(g.Nodes)),
	}
	for id, n := range g.Nodes {
		snap.Nodes = append(snap.Nodes, snapshotNode{ID: id, Latitude: n.Latitude, Longitude: n.Longitude})
	}
	for _, e := range g.EdgeList() {
		snap.Edges = append(snap.Edges, snapshotEdge{
			FromID:   e.FromID,
			ToID:     e.ToID,
			Key:      e.Key,
			Length:   e.Length,
			Geometry: e.Geometry,
			Name:     e.Name,
		})
	}

	if err := gob.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot reads a graph written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader) (*routing.Graph, error) {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("decode snapshot: unsupported version %d", snap.Version)
	}

	g := routing.NewGraph()
	for _, n := range snap.Nodes {
		g.AddNode(n.ID, n.Latitude, n.Longitude)
	}
	for _, e := range snap.Edges {
		edge, err := g.AddEdgeWithKey(e.FromID, e.ToID, e.Key, e.Length, e.Geometry)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		edge.Name = e.Name
	}
	return g, nil
}

// SaveSnapshot writes g to path, creating parent directories.
func SaveSnapshot(path string, g *routing.Graph) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create GOB file %s: %w", path, err)
	}
	defer f.Close()

	if err := EncodeSnapshot(f, g); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// LoadSnapshot reads a gob snapshot from path.
func LoadSnapshot(path string) (*routing.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := DecodeSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}
