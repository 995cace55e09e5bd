package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"flood-route-server/hazard"
	"flood-route-server/metrics"
	"flood-route-server/network"
	"flood-route-server/routing"
)

const DefaultRadiusMeters = 5000.0

// NodeLocator resolves a coordinate to a graph node.
type NodeLocator interface {
	Nearest(ctx context.Context, g *routing.Graph, point routing.Coordinate) (int64, error)
}

// HaversineLocator scans every node by great-circle distance.
type HaversineLocator struct{}

func (HaversineLocator) Nearest(ctx context.Context, g *routing.Graph, point routing.Coordinate) (int64, error) {
	id, _, err := routing.NearestNode(point, g)
	return id, err
}

type Options struct {
	DefaultRadiusMeters float64
	FetchTimeout        time.Duration
	LookupTimeout       time.Duration
	FilterWorkers       int
}

type RouteRequest struct {
	RequestID    string
	Start        routing.Coordinate
	End          routing.Coordinate
	Zones        []hazard.Zone
	RadiusMeters float64 // 0 means the service default
}

type Stats struct {
	NodesFetched int
	EdgesFetched int
	Durations    map[Stage]time.Duration
}

type RouteResult struct {
	RequestID string
	Route     routing.Route
	Distance  string // "X.XX km"
	StartNode int64
	EndNode   int64
	Filter    hazard.Report
	Stats     Stats
}

type RoutingService struct {
	source  network.Source
	locator NodeLocator
	opts    Options
	logger  *slog.Logger
}

func NewRoutingService(source network.Source, locator NodeLocator, opts Options, logger *slog.Logger) *RoutingService {
	if locator == nil {
		locator = HaversineLocator{}
	}
	if opts.DefaultRadiusMeters <= 0 {
		opts.DefaultRadiusMeters = DefaultRadiusMeters
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoutingService{
		source:  source,
		locator: locator,
		opts:    opts,
		logger:  logger,
	}
}

// CalculateRoute fetches the network around Start, drops roads touching any
// hazard zone, and returns the shortest remaining route to End. Every failure
// is a *RouteError; a blocked route has Kind KindNoPathFound.
func (rs *RoutingService) CalculateRoute(ctx context.Context, req RouteRequest) (result *RouteResult, err error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	log := rs.logger.With("request_id", req.RequestID)
	stage := StageReceived
	stats := Stats{Durations: make(map[Stage]time.Duration)}
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("route calculation panicked", "stage", stage, "panic", r)
			result = nil
			err = &RouteError{Kind: KindInternal, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
		}
		metrics.RouteRequests.WithLabelValues(outcome).Inc()
	}()

	fail := func(kind Kind, cause error) error {
		log.Warn("route calculation failed", "stage", stage, "kind", kind, "error", cause)
		return &RouteError{Kind: kind, Stage: stage, Err: cause}
	}
	mark := func(s Stage, since time.Time) {
		d := time.Since(since)
		stats.Durations[s] += d
		metrics.StageDuration.WithLabelValues(string(s)).Observe(d.Seconds())
	}

	log.Info("route calculation started",
		"start", req.Start.Pair(),
		"end", req.End.Pair(),
		"zones", len(req.Zones),
	)

	radius := req.RadiusMeters
	switch {
	case !req.Start.Valid():
		return nil, fail(KindInvalidRequest, fmt.Errorf("start %v is not a valid coordinate", req.Start.Pair()))
	case !req.End.Valid():
		return nil, fail(KindInvalidRequest, fmt.Errorf("end %v is not a valid coordinate", req.End.Pair()))
	case math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0:
		return nil, fail(KindInvalidRequest, fmt.Errorf("radius %v must be a non-negative number", radius))
	case radius == 0:
		radius = rs.opts.DefaultRadiusMeters
	}

	// Fetching: network plus endpoint lookup.
	stage = StageFetching
	t := time.Now()
	g, err := callWithTimeout(ctx, rs.opts.FetchTimeout, func(ctx context.Context) (*routing.Graph, error) {
		return rs.source.Fetch(ctx, req.Start, radius)
	})
	if err != nil {
		return nil, fail(collaboratorKind(err), fmt.Errorf("fetch network: %w", err))
	}
	if g == nil {
		return nil, fail(KindCollaboratorFailure, errors.New("fetch network: source returned no graph"))
	}
	if err := g.Validate(); err != nil {
		return nil, fail(KindInternal, err)
	}
	stats.NodesFetched = g.NodeCount()
	stats.EdgesFetched = g.EdgeCount()
	log.Info("network fetched", "nodes", stats.NodesFetched, "edges", stats.EdgesFetched, "radius_m", radius)

	startNode, err := rs.lookup(ctx, g, req.Start)
	if err != nil {
		return nil, fail(collaboratorKind(err), fmt.Errorf("locate start: %w", err))
	}
	endNode, err := rs.lookup(ctx, g, req.End)
	if err != nil {
		return nil, fail(collaboratorKind(err), fmt.Errorf("locate end: %w", err))
	}
	mark(StageFetching, t)
	log.Debug("endpoints located", "start_node", startNode, "end_node", endNode)

	stage = StageFiltering
	t = time.Now()
	var report hazard.Report
	if len(req.Zones) > 0 {
		report, err = hazard.Filter(ctx, g, req.Zones,
			hazard.WithWorkers(rs.opts.FilterWorkers),
			hazard.WithLogger(log),
		)
		if err != nil {
			return nil, fail(KindInternal, err)
		}
		metrics.ZonesSkipped.Add(float64(len(report.Skipped)))
		metrics.EdgesRemoved.Observe(float64(report.EdgesRemoved))
		log.Info("hazard zones applied",
			"zones_applied", report.ZonesApplied,
			"zones_skipped", len(report.Skipped),
			"edges_removed", report.EdgesRemoved,
			"edges_left", g.EdgeCount(),
		)
	}
	mark(StageFiltering, t)

	stage = StagePathFinding
	t = time.Now()
	path, found, err := routing.ShortestPath(g, startNode, endNode)
	if err != nil {
		if errors.Is(err, routing.ErrNodeNotFound) {
			return nil, fail(KindInvalidEndpoint, err)
		}
		return nil, fail(KindInternal, err)
	}
	mark(StagePathFinding, t)
	if !found {
		return nil, fail(KindNoPathFound, ErrNoPath)
	}

	stage = StageAssembling
	t = time.Now()
	route, err := routing.Assemble(g, path)
	if err != nil {
		return nil, fail(KindInternal, err)
	}
	mark(StageAssembling, t)

	stage = StageDone
	result = &RouteResult{
		RequestID: req.RequestID,
		Route:     route,
		Distance:  routing.FormatDistance(route.DistanceMeters),
		StartNode: startNode,
		EndNode:   endNode,
		Filter:    report,
		Stats:     stats,
	}
	log.Info("route calculated",
		"nodes", len(path.Nodes),
		"distance", result.Distance,
		"duration", time.Since(started),
	)
	return result, nil
}

func (rs *RoutingService) lookup(ctx context.Context, g *routing.Graph, point routing.Coordinate) (int64, error) {
	return callWithTimeout(ctx, rs.opts.LookupTimeout, func(ctx context.Context) (int64, error) {
		return rs.locator.Nearest(ctx, g, point)
	})
}

// callWithTimeout runs fn under a deadline. fn runs on its own goroutine so a
// collaborator that ignores ctx still cannot hold the request past timeout.
// A timeout <= 0 only applies ctx.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", errCollaboratorPanic, r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{val: v, err: err}
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func collaboratorKind(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindCollaboratorTimeout
	case errors.Is(err, errCollaboratorPanic):
		return KindInternal
	default:
		return KindCollaboratorFailure
	}
}
