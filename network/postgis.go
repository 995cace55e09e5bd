package network

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"flood-route-server/routing"
)

// Querier is the subset of *pgxpool.Pool the PostGIS source needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const nodesWithinQuery = `
	SELECT id, lat, lon
	FROM road_nodes
	WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)`

const edgesAmongQuery = `
	SELECT source, target, key, length, COALESCE(name, ''), ST_AsText(geom)
	FROM road_edges
	WHERE source = ANY($1) AND target = ANY($1)
	ORDER BY source, target, key`

// PostGISSource reads road_nodes and road_edges tables.
type PostGISSource struct {
	db     Querier
	logger *slog.Logger
}

func NewPostGISSource(db Querier, logger *slog.Logger) *PostGISSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostGISSource{db: db, logger: logger}
}

func (s *PostGISSource) Fetch(ctx context.Context, center routing.Coordinate, radiusMeters float64) (*routing.Graph, error) {
	g := routing.NewGraph()

	rows, err := s.db.Query(ctx, nodesWithinQuery, center.Lon, center.Lat, radiusMeters)
	if err != nil {
		return nil, s.upstream(ctx, "postgis.Fetch.Nodes", err)
	}
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		var lat, lon float64
		if err := rows.Scan(&id, &lat, &lon); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgis.Fetch.ScanNode: %w", err)
		}
		g.AddNode(id, lat, lon)
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, s.upstream(ctx, "postgis.Fetch.Nodes", err)
	}
	if len(ids) == 0 {
		return g, nil
	}

	rows, err = s.db.Query(ctx, edgesAmongQuery, ids)
	if err != nil {
		return nil, s.upstream(ctx, "postgis.Fetch.Edges", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source, target int64
			key            int
			length         float64
			name           string
			geomWKT        *string
		)
		if err := rows.Scan(&source, &target, &key, &length, &name, &geomWKT); err != nil {
			return nil, fmt.Errorf("postgis.Fetch.ScanEdge: %w", err)
		}

		var geometry []routing.Coordinate
		if geomWKT != nil {
			if geometry, err = parseGeometry(*geomWKT); err != nil {
				return nil, fmt.Errorf("postgis.Fetch edge %d->%d: %w", source, target, err)
			}
		}
		edge, err := g.AddEdgeWithKey(source, target, key, length, geometry)
		if err != nil {
			return nil, fmt.Errorf("postgis.Fetch: %w", err)
		}
		edge.Name = name
	}
	if err := rows.Err(); err != nil {
		return nil, s.upstream(ctx, "postgis.Fetch.Edges", err)
	}

	s.logger.Info("road network fetched",
		"source", "postgis",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
	)
	return g, nil
}

func (s *PostGISSource) upstream(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}
