package models

import (
	"flood-route-server/hazard"
	"flood-route-server/services"
)

const (
	MessageRouteCalculated = "Route calculated successfully!"
	ErrorNoSafePath        = "No safe path exists!"
	MessageFloodBlocks     = "Flood blocks all routes."
	ErrorRouteFailed       = "Route calculation failed"
	ErrorInvalidRequest    = "Invalid request"
)

type RouteResponse struct {
	Route        [][2]float64         `json:"route"`
	Distance     string               `json:"distance"`
	DistanceM    float64              `json:"distance_m"`
	Message      string               `json:"message"`
	RequestID    string               `json:"request_id"`
	SkippedZones []hazard.SkippedZone `json:"skipped_zones"`
	EdgesRemoved int                  `json:"edges_removed"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func NewRouteResponse(res *services.RouteResult) RouteResponse {
	route := make([][2]float64, 0, len(res.Route.Coordinates))
	for _, c := range res.Route.Coordinates {
		route = append(route, c.Pair())
	}
	skipped := res.Filter.Skipped
	if skipped == nil {
		skipped = []hazard.SkippedZone{}
	}
	return RouteResponse{
		Route:        route,
		Distance:     res.Distance,
		DistanceM:    res.Route.DistanceMeters,
		Message:      MessageRouteCalculated,
		RequestID:    res.RequestID,
		SkippedZones: skipped,
		EdgesRemoved: res.Filter.EdgesRemoved,
	}
}
