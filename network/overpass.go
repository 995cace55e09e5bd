package network

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/osm"

	"flood-route-server/routing"
)

const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// drivableHighways mirrors the OSMnx "drive" network filter.
const drivableHighways = `^(motorway|motorway_link|trunk|trunk_link|primary|primary_link|secondary|secondary_link|tertiary|tertiary_link|unclassified|residential|living_street|road)$`

// OverpassSource downloads the drivable network around a point from an
// Overpass API endpoint.
type OverpassSource struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewOverpassSource returns a source for endpoint. A nil client gets a 60s
// timeout; a nil logger uses slog.Default().
func NewOverpassSource(endpoint string, client *http.Client, logger *slog.Logger) *OverpassSource {
	if endpoint == "" {
		endpoint = DefaultOverpassURL
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OverpassSource{endpoint: endpoint, client: client, logger: logger}
}

func buildOverpassQuery(center routing.Coordinate, radiusMeters float64) string {
	return fmt.Sprintf(`[out:xml][timeout:60];
(
  way["highway"~"%s"]["area"!~"yes"]["access"!~"private|no"]["service"!~"parking|parking_aisle|driveway|private|emergency_access"](around:%.0f,%.7f,%.7f);
);
(._;>;);
out body;`, drivableHighways, radiusMeters, center.Lat, center.Lon)
}

func (s *OverpassSource) Fetch(ctx context.Context, center routing.Coordinate, radiusMeters float64) (*routing.Graph, error) {
	form := url.Values{}
	form.Set("data", buildOverpassQuery(center, radiusMeters))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: Overpass request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read Overpass response: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: Overpass returned status %d: %s", ErrUpstream, resp.StatusCode, truncate(string(body), 200))
	}

	var data osm.OSM
	if err := xml.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: failed to parse Overpass XML: %v", ErrUpstream, err)
	}

	g, err := GraphFromOSM(&data)
	if err != nil {
		return nil, err
	}

	s.logger.Info("road network fetched",
		"source", "overpass",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"ways", len(data.Ways),
		"duration", time.Since(start),
	)
	return g, nil
}

// GraphFromOSM turns OSM ways into directed road edges, one per consecutive
// pair of way nodes. Only nodes used by some edge are kept.
func GraphFromOSM(data *osm.OSM) (*routing.Graph, error) {
	coords := make(map[osm.NodeID]routing.Coordinate, len(data.Nodes))
	for _, n := range data.Nodes {
		coords[n.ID] = routing.Coordinate{Lat: n.Lat, Lon: n.Lon}
	}

	g := routing.NewGraph()
	ensure := func(id osm.NodeID) bool {
		if g.HasNode(int64(id)) {
			return true
		}
		c, ok := coords[id]
		if !ok || !c.Valid() {
			return false
		}
		g.AddNode(int64(id), c.Lat, c.Lon)
		return true
	}

	for _, w := range data.Ways {
		forward, backward := wayDirections(w.Tags)
		name := w.Tags.Find("name")

		for i := 1; i < len(w.Nodes); i++ {
			a, b := w.Nodes[i-1].ID, w.Nodes[i].ID
			if a == b || !ensure(a) || !ensure(b) {
				continue
			}
			from, to := int64(a), int64(b)
			length := routing.HaversineDistance(g.Nodes[from].Coordinate(), g.Nodes[to].Coordinate())

			if forward {
				e, err := g.AddEdge(from, to, length, nil)
				if err != nil {
					return nil, fmt.Errorf("way %d: %w", w.ID, err)
				}
				e.Name = name
			}
			if backward {
				e, err := g.AddEdge(to, from, length, nil)
				if err != nil {
					return nil, fmt.Errorf("way %d: %w", w.ID, err)
				}
				e.Name = name
			}
		}
	}
	return g, nil
}

// wayDirections applies the oneway rules used for driving.
func wayDirections(tags osm.Tags) (forward, backward bool) {
	switch tags.Find("oneway") {
	case "yes", "true", "1":
		return true, false
	case "-1", "reverse":
		return false, true
	case "no", "false", "0":
		return true, true
	}
	switch tags.Find("junction") {
	case "roundabout", "circular":
		return true, false
	}
	if tags.Find("highway") == "motorway" {
		return true, false
	}
	return true, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
