package routing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEdge_AssignsKeys(t *testing.T) {
	g := NewGraph()
	g.AddNode(1, 0, 0)
	g.AddNode(2, 0, 1)

	e0, err := g.AddEdge(1, 2, 10, nil)
	require.NoError(t, err)
	e1, err := g.AddEdge(1, 2, 20, nil)
	require.NoError(t, err)
	back, err := g.AddEdge(2, 1, 10, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, e0.Key)
	assert.Equal(t, 1, e1.Key)
	assert.Equal(t, 0, back.Key)
	assert.Equal(t, 3, g.EdgeCount())
	assert.Len(t, g.EdgesBetween(1, 2), 2)
}

func TestAddEdge_Errors(t *testing.T) {
	g := NewGraph()
	g.AddNode(1, 0, 0)
	g.AddNode(2, 0, 1)

	_, err := g.AddEdge(1, 3, 10, nil)
	assert.True(t, errors.Is(err, ErrNodeNotFound))

	_, err = g.AddEdgeWithKey(1, 2, 4, 10, nil)
	require.NoError(t, err)
	_, err = g.AddEdgeWithKey(1, 2, 4, 12, nil)
	assert.True(t, errors.Is(err, ErrDuplicateEdge))

	next, err := g.AddEdge(1, 2, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, next.Key)
}

func TestRemoveEdge_KeepsParallelAndNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode(1, 0, 0)
	g.AddNode(2, 0, 1)
	_, _ = g.AddEdge(1, 2, 10, nil)
	_, _ = g.AddEdge(1, 2, 20, nil)

	require.NoError(t, g.RemoveEdge(EdgeRef{FromID: 1, ToID: 2, Key: 0}))
	remaining := g.EdgesBetween(1, 2)
	require.Len(t, remaining, 1)
	assert.Equal(t, 1, remaining[0].Key)

	require.NoError(t, g.RemoveEdge(EdgeRef{FromID: 1, ToID: 2, Key: 1}))
	assert.Zero(t, g.EdgeCount())
	assert.Equal(t, 2, g.NodeCount())

	err := g.RemoveEdge(EdgeRef{FromID: 1, ToID: 2, Key: 1})
	assert.True(t, errors.Is(err, ErrEdgeNotFound))
}

func TestBestEdge(t *testing.T) {
	g := NewGraph()
	g.AddNode(1, 0, 0)
	g.AddNode(2, 0, 1)
	_, _ = g.AddEdgeWithKey(1, 2, 3, 40, nil)
	_, _ = g.AddEdgeWithKey(1, 2, 1, 40, nil)
	_, _ = g.AddEdgeWithKey(1, 2, 2, 90, nil)

	best, ok := g.BestEdge(1, 2)
	require.True(t, ok)
	assert.Equal(t, 1, best.Key, "equal lengths fall back to the lowest key")

	_, ok = g.BestEdge(2, 1)
	assert.False(t, ok)
}

func TestEdgeList_Ordered(t *testing.T) {
	g := NewGraph()
	for id := int64(1); id <= 3; id++ {
		g.AddNode(id, 0, float64(id))
	}
	_, _ = g.AddEdge(3, 1, 1, nil)
	_, _ = g.AddEdge(1, 3, 1, nil)
	_, _ = g.AddEdge(1, 2, 1, nil)
	_, _ = g.AddEdge(1, 2, 1, nil)

	var refs []EdgeRef
	for _, e := range g.EdgeList() {
		refs = append(refs, e.Ref())
	}
	assert.Equal(t, []EdgeRef{
		{FromID: 1, ToID: 2, Key: 0},
		{FromID: 1, ToID: 2, Key: 1},
		{FromID: 1, ToID: 3, Key: 0},
		{FromID: 3, ToID: 1, Key: 0},
	}, refs)
}

func TestSegment(t *testing.T) {
	g := NewGraph()
	g.AddNode(1, 10, 20)
	g.AddNode(2, 11, 21)
	straight, _ := g.AddEdge(1, 2, 1, nil)
	curved, _ := g.AddEdge(1, 2, 1, []Coordinate{{10, 20}, {10.5, 20.9}, {11, 21}})
	single, _ := g.AddEdge(1, 2, 1, []Coordinate{{10, 20}})

	seg, err := g.Segment(straight)
	require.NoError(t, err)
	assert.Equal(t, []Coordinate{{Lat: 10, Lon: 20}, {Lat: 11, Lon: 21}}, seg)

	seg, err = g.Segment(curved)
	require.NoError(t, err)
	assert.Len(t, seg, 3)

	seg, err = g.Segment(single)
	require.NoError(t, err)
	assert.Len(t, seg, 2)
}

func TestValidate(t *testing.T) {
	g := lineGraph(t)
	require.NoError(t, g.Validate())

	bad := g.Clone()
	bad.Edges[1][0].Length = math.NaN()
	assert.True(t, errors.Is(bad.Validate(), ErrInvalidGraph))

	bad = g.Clone()
	bad.Nodes[2].Latitude = 95
	assert.True(t, errors.Is(bad.Validate(), ErrInvalidGraph))

	bad = g.Clone()
	delete(bad.Nodes, 3)
	assert.True(t, errors.Is(bad.Validate(), ErrInvalidGraph))
}

func TestClone_IsDeep(t *testing.T) {
	g := lineGraph(t)
	c := g.Clone()

	require.NoError(t, c.RemoveEdge(EdgeRef{FromID: 1, ToID: 2}))
	c.Nodes[1].Latitude = 45

	assert.Equal(t, 2, g.EdgeCount())
	assert.Zero(t, g.Nodes[1].Latitude)
}
