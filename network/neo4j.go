package network

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"flood-route-server/routing"
)

// Runner executes a Cypher query and buffers the result.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

// Neo4jExecutor runs queries through the official driver.
type Neo4jExecutor struct {
	Driver neo4j.DriverWithContext
	DBName string
}

func NewNeo4jExecutor(uri, username, password, dbName string) (*Neo4jExecutor, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &Neo4jExecutor{Driver: driver, DBName: dbName}, nil
}

func (e *Neo4jExecutor) Verify(ctx context.Context) error {
	return e.Driver.VerifyConnectivity(ctx)
}

func (e *Neo4jExecutor) Close(ctx context.Context) error {
	return e.Driver.Close(ctx)
}

func (e *Neo4jExecutor) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(
		ctx,
		e.Driver,
		query,
		params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(e.DBName),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	return result, nil
}

const roadsWithinQuery = `
MATCH (a:Intersection)-[r:ROAD]->(b:Intersection)
WITH a, r, b, point({latitude: $lat, longitude: $lon}) AS center
WHERE point.distance(point({latitude: a.lat, longitude: a.lon}), center) <= $radius
  AND point.distance(point({latitude: b.lat, longitude: b.lon}), center) <= $radius
RETURN a.osmid AS from, a.lat AS from_lat, a.lon AS from_lon,
       b.osmid AS to, b.lat AS to_lat, b.lon AS to_lon,
       r.key AS key, r.length AS length, r.name AS name, r.geometry AS geometry
ORDER BY from, to, key`

// Neo4jSource reads (:Intersection)-[:ROAD]->(:Intersection) road graphs.
type Neo4jSource struct {
	runner Runner
	logger *slog.Logger
}

func NewNeo4jSource(runner Runner, logger *slog.Logger) *Neo4jSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &Neo4jSource{runner: runner, logger: logger}
}

func (s *Neo4jSource) Fetch(ctx context.Context, center routing.Coordinate, radiusMeters float64) (*routing.Graph, error) {
	result, err := s.runner.Run(ctx, roadsWithinQuery, map[string]any{
		"lat":    center.Lat,
		"lon":    center.Lon,
		"radius": radiusMeters,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	g := routing.NewGraph()
	for i, rec := range result.Records {
		from, err := recordInt(rec, "from")
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		to, err := recordInt(rec, "to")
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		for _, end := range []struct {
			id     int64
			prefix string
		}{{from, "from"}, {to, "to"}} {
			if g.HasNode(end.id) {
				continue
			}
			lat, err := recordFloat(rec, end.prefix+"_lat")
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			lon, err := recordFloat(rec, end.prefix+"_lon")
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			g.AddNode(end.id, lat, lon)
		}

		length, err := recordFloat(rec, "length")
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		var geometry []routing.Coordinate
		if raw, ok := rec.Get("geometry"); ok && raw != nil {
			if geometry, err = parseGeometry(raw); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
		}

		var edge *routing.Edge
		if raw, ok := rec.Get("key"); ok && raw != nil {
			key, ok := raw.(int64)
			if !ok {
				return nil, fmt.Errorf("record %d: key has type %T", i, raw)
			}
			edge, err = g.AddEdgeWithKey(from, to, int(key), length, geometry)
		} else {
			edge, err = g.AddEdge(from, to, length, geometry)
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if name, ok := rec.Get("name"); ok {
			edge.Name = convertToString(name)
		}
	}

	s.logger.Info("road network fetched",
		"source", "neo4j",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
	)
	return g, nil
}

func recordInt(rec *neo4j.Record, key string) (int64, error) {
	raw, ok := rec.Get(key)
	if !ok || raw == nil {
		return 0, fmt.Errorf("missing %q", key)
	}
	switch v := raw.(type) {
	case int64:
		return v, nil
	case string:
		return convertID(v)
	default:
		return 0, fmt.Errorf("%q has type %T", key, raw)
	}
}

func recordFloat(rec *neo4j.Record, key string) (float64, error) {
	raw, ok := rec.Get(key)
	if !ok || raw == nil {
		return 0, fmt.Errorf("missing %q", key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%q has type %T", key, raw)
	}
}
