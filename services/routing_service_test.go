package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flood-route-server/hazard"
	"flood-route-server/network"
	"flood-route-server/routing"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// chainSource serves A(0,0) -> B(0,1) -> C(0,2), 100 m per hop, and records
// the radius it was asked for.
type chainSource struct {
	radius float64
}

func (s *chainSource) Fetch(ctx context.Context, center routing.Coordinate, radiusMeters float64) (*routing.Graph, error) {
	s.radius = radiusMeters
	g := routing.NewGraph()
	g.AddNode(1, 0, 0)
	g.AddNode(2, 0, 1)
	g.AddNode(3, 0, 2)
	_, _ = g.AddEdge(1, 2, 100, nil)
	_, _ = g.AddEdge(2, 3, 100, nil)
	return g, nil
}

type locatorFunc func(ctx context.Context, g *routing.Graph, p routing.Coordinate) (int64, error)

func (f locatorFunc) Nearest(ctx context.Context, g *routing.Graph, p routing.Coordinate) (int64, error) {
	return f(ctx, g, p)
}

var (
	pointA = routing.Coordinate{Lat: 0, Lon: 0}
	pointC = routing.Coordinate{Lat: 0, Lon: 2}

	zoneAcrossBC = hazard.Zone{{Lat: -0.5, Lon: 1.4}, {Lat: -0.5, Lon: 1.6}, {Lat: 0.5, Lon: 1.6}, {Lat: 0.5, Lon: 1.4}}
)

func newService(src network.Source, locator NodeLocator, opts Options) *RoutingService {
	return NewRoutingService(src, locator, opts, quietLogger)
}

func requireKind(t *testing.T, err error, kind Kind) *RouteError {
	t.Helper()
	require.Error(t, err)
	var re *RouteError
	require.True(t, errors.As(err, &re), "expected *RouteError, got %T: %v", err, err)
	assert.Equal(t, kind, re.Kind, "error: %v", err)
	return re
}

func TestCalculateRoute_Unblocked(t *testing.T) {
	src := &chainSource{}
	rs := newService(src, nil, Options{})

	res, err := rs.CalculateRoute(context.Background(), RouteRequest{Start: pointA, End: pointC})
	require.NoError(t, err)

	assert.Equal(t, []routing.Coordinate{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 0, Lon: 2}}, res.Route.Coordinates)
	assert.Equal(t, 200.0, res.Route.DistanceMeters)
	assert.Equal(t, "0.20 km", res.Distance)
	assert.Equal(t, int64(1), res.StartNode)
	assert.Equal(t, int64(3), res.EndNode)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, DefaultRadiusMeters, src.radius)
	assert.Equal(t, 3, res.Stats.NodesFetched)
	assert.Equal(t, 2, res.Stats.EdgesFetched)
}

func TestCalculateRoute_UsesRequestRadiusAndID(t *testing.T) {
	src := &chainSource{}
	rs := newService(src, nil, Options{DefaultRadiusMeters: 1234})

	res, err := rs.CalculateRoute(context.Background(), RouteRequest{RequestID: "req-1", Start: pointA, End: pointC, RadiusMeters: 800})
	require.NoError(t, err)
	assert.Equal(t, 800.0, src.radius)
	assert.Equal(t, "req-1", res.RequestID)

	_, err = rs.CalculateRoute(context.Background(), RouteRequest{Start: pointA, End: pointC})
	require.NoError(t, err)
	assert.Equal(t, 1234.0, src.radius)
}

func TestCalculateRoute_BlockedByZone(t *testing.T) {
	rs := newService(&chainSource{}, nil, Options{})

	res, err := rs.CalculateRoute(context.Background(), RouteRequest{
		Start: pointA,
		End:   pointC,
		Zones: []hazard.Zone{zoneAcrossBC},
	})
	assert.Nil(t, res)
	re := requireKind(t, err, KindNoPathFound)
	assert.Equal(t, StagePathFinding, re.Stage)
	assert.True(t, errors.Is(err, ErrNoPath))
}

func TestCalculateRoute_DegenerateZoneIgnored(t *testing.T) {
	rs := newService(&chainSource{}, nil, Options{})

	res, err := rs.CalculateRoute(context.Background(), RouteRequest{
		Start: pointA,
		End:   pointC,
		Zones: []hazard.Zone{{{Lat: 0, Lon: 1.5}, {Lat: 0, Lon: 1.5}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 200.0, res.Route.DistanceMeters)
	require.Len(t, res.Filter.Skipped, 1)
	assert.True(t, errors.Is(res.Filter.Skipped[0].Err, hazard.ErrMalformedZone))
}

func TestCalculateRoute_SameStartAndEnd(t *testing.T) {
	rs := newService(&chainSource{}, nil, Options{})

	res, err := rs.CalculateRoute(context.Background(), RouteRequest{Start: pointA, End: pointA})
	require.NoError(t, err)
	assert.Equal(t, []routing.Coordinate{pointA}, res.Route.Coordinates)
	assert.Zero(t, res.Route.DistanceMeters)
	assert.Equal(t, "0.00 km", res.Distance)
}

func TestCalculateRoute_InvalidRequest(t *testing.T) {
	rs := newService(&chainSource{}, nil, Options{})

	_, err := rs.CalculateRoute(context.Background(), RouteRequest{Start: routing.Coordinate{Lat: 100}, End: pointC})
	requireKind(t, err, KindInvalidRequest)

	_, err = rs.CalculateRoute(context.Background(), RouteRequest{Start: pointA, End: pointC, RadiusMeters: -5})
	requireKind(t, err, KindInvalidRequest)
}

func TestCalculateRoute_FetchFailure(t *testing.T) {
	src := network.SourceFunc(func(ctx context.Context, center routing.Coordinate, radius float64) (*routing.Graph, error) {
		return nil, fmt.Errorf("%w: overpass returned 503", network.ErrUpstream)
	})
	rs := newService(src, nil, Options{})

	_, err := rs.CalculateRoute(context.Background(), RouteRequest{Start: pointA, End: pointC})
	re := requireKind(t, err, KindCollaboratorFailure)
	assert.Equal(t, StageFetching, re.Stage)
	assert.True(t, errors.Is(err, network.ErrUpstream))
}

func TestCalculateRoute_FetchTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	src := network.SourceFunc(func(ctx context.Context, center routing.Coordinate, radius float64) (*routing.Graph, error) {
		<-release // ignores ctx
		return nil, nil
	})
	rs := newService(src, nil, Options{FetchTimeout: 20 * time.Millisecond})

	began := time.Now()
	_, err := rs.CalculateRoute(context.Background(), RouteRequest{Start: pointA, End: pointC})
	requireKind(t, err, KindCollaboratorTimeout)
	assert.Less(t, time.Since(began), 2*time.Second)
}

func TestCalculateRoute_LookupTimeout(t *testing.T) {
	slow := locatorFunc(func(ctx context.Context, g *routing.Graph, p routing.Coordinate) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	rs := newService(&chainSource{}, slow, Options{LookupTimeout: 10 * time.Millisecond})

	_, err := rs.CalculateRoute(context.Background(), RouteRequest{Start: pointA, End: pointC})
	re := requireKind(t, err, KindCollaboratorTimeout)
	assert.Equal(t, StageFetching, re.Stage)
}

func TestCalculateRoute_UnknownEndpoint(t *testing.T) {
	bogus := locatorFunc(func(ctx context.Context, g *routing.Graph, p routing.Coordinate) (int64, error) {
		return 999, nil
	})
	rs := newService(&chainSource{}, bogus, Options{})

	_, err := rs.CalculateRoute(context.Background(), RouteRequest{Start: pointA, End: pointC})
	requireKind(t, err, KindInvalidEndpoint)
	assert.True(t, errors.Is(err, routing.ErrNodeNotFound))
}

func TestCalculateRoute_EmptyNetwork(t *testing.T) {
	src := network.SourceFunc(func(ctx context.Context, center routing.Coordinate, radius float64) (*routing.Graph, error) {
		return routing.NewGraph(), nil
	})
	rs := newService(src, nil, Options{})

	_, err := rs.CalculateRoute(context.Background(), RouteRequest{Start: pointA, End: pointC})
	requireKind(t, err, KindCollaboratorFailure)
	assert.True(t, errors.Is(err, routing.ErrNoNodeFound))
}

func TestCalculateRoute_InvalidGraph(t *testing.T) {
	src := network.SourceFunc(func(ctx context.Context, center routing.Coordinate, radius float64) (*routing.Graph, error) {
		g := routing.NewGraph()
		g.AddNode(1, 0, 0)
		g.AddNode(2, 0, 1)
		_, _ = g.AddEdge(1, 2, -3, nil)
		return g, nil
	})
	rs := newService(src, nil, Options{})

	_, err := rs.CalculateRoute(context.Background(), RouteRequest{Start: pointA, End: pointC})
	requireKind(t, err, KindInternal)
	assert.True(t, errors.Is(err, routing.ErrInvalidGraph))
}

func TestCalculateRoute_CollaboratorPanic(t *testing.T) {
	boom := locatorFunc(func(ctx context.Context, g *routing.Graph, p routing.Coordinate) (int64, error) {
		panic("index out of range")
	})
	rs := newService(&chainSource{}, boom, Options{})

	_, err := rs.CalculateRoute(context.Background(), RouteRequest{Start: pointA, End: pointC})
	requireKind(t, err, KindInternal)
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &RouteError{Kind: KindNoPathFound, Stage: StagePathFinding, Err: ErrNoPath})
	assert.Equal(t, KindNoPathFound, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "NoPathFound during path_finding")
}
