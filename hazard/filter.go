package hazard

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"flood-route-server/routing"
)

// SkippedZone records a zone Filter could not use.
type SkippedZone struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Report summarizes one Filter run.
type Report struct {
	ZonesReceived int           `json:"zones_received"`
	ZonesApplied  int           `json:"zones_applied"`
	Skipped       []SkippedZone `json:"skipped,omitempty"`
	EdgesScanned  int           `json:"edges_scanned"`
	EdgesRemoved  int           `json:"edges_removed"`
}

type options struct {
	workers int
	logger  *slog.Logger
}

type Option func(*options)

// WithWorkers sets how many goroutines scan edges. Values below 1 fall back
// to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

type zonePolygon struct {
	poly  orb.Polygon
	bound orb.Bound
}

// Filter removes from g every edge whose segment intersects at least one
// valid zone. Malformed zones are skipped and listed in the report. Nodes are
// never removed.
//
// The scan runs on several goroutines that only read g; removal happens
// afterwards on the calling goroutine. If ctx is cancelled during the scan,
// g is left untouched and ctx.Err() is returned.
func Filter(ctx context.Context, g *routing.Graph, zones []Zone, opts ...Option) (Report, error) {
	o := options{workers: runtime.GOMAXPROCS(0), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}

	report := Report{ZonesReceived: len(zones)}

	polys := make([]zonePolygon, 0, len(zones))
	for i, z := range zones {
		ring, err := NormalizeZone(z)
		if err != nil {
			o.logger.Warn("skipping hazard zone", "index", i, "vertices", len(z), "error", err)
			report.Skipped = append(report.Skipped, SkippedZone{Index: i, Reason: err.Error(), Err: err})
			continue
		}
		poly := orb.Polygon{ring}
		polys = append(polys, zonePolygon{poly: poly, bound: ring.Bound()})
	}
	report.ZonesApplied = len(polys)
	if len(polys) == 0 {
		return report, nil
	}

	edges := g.EdgeList()
	report.EdgesScanned = len(edges)
	if len(edges) == 0 {
		return report, nil
	}

	workers := o.workers
	if workers > len(edges) {
		workers = len(edges)
	}
	chunk := (len(edges) + workers - 1) / workers
	marks := make([][]routing.EdgeRef, workers)

	eg, egCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(edges))
		if lo >= hi {
			continue
		}
		w := w
		eg.Go(func() error {
			for _, e := range edges[lo:hi] {
				if err := egCtx.Err(); err != nil {
					return err
				}
				hit, err := edgeHitsAny(g, e, polys)
				if err != nil {
					return err
				}
				if hit {
					marks[w] = append(marks[w], e.Ref())
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	removed := make(map[routing.EdgeRef]struct{})
	for _, part := range marks {
		for _, ref := range part {
			if _, done := removed[ref]; done {
				continue
			}
			if err := g.RemoveEdge(ref); err != nil {
				return report, fmt.Errorf("hazard: commit removal: %w", err)
			}
			removed[ref] = struct{}{}
		}
	}
	report.EdgesRemoved = len(removed)

	o.logger.Debug("hazard filter applied",
		"zones_applied", report.ZonesApplied,
		"zones_skipped", len(report.Skipped),
		"edges_scanned", report.EdgesScanned,
		"edges_removed", report.EdgesRemoved,
	)
	return report, nil
}

func edgeHitsAny(g *routing.Graph, e *routing.Edge, polys []zonePolygon) (bool, error) {
	seg, err := g.Segment(e)
	if err != nil {
		return false, fmt.Errorf("hazard: %w", err)
	}
	line := toLineString(seg)
	lb := line.Bound()
	for _, z := range polys {
		if !lb.Intersects(z.bound) {
			continue
		}
		if Intersects(line, z.poly) {
			return true, nil
		}
	}
	return false, nil
}
