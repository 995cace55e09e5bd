package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"flood-route-server/models"
	"flood-route-server/services"
)

const requestIDHeader = "X-Request-ID"

// RouteCalculator is satisfied by *services.RoutingService.
type RouteCalculator interface {
	CalculateRoute(ctx context.Context, req services.RouteRequest) (*services.RouteResult, error)
}

type RoutingHandler struct {
	routingService RouteCalculator
	logger         *slog.Logger
}

func NewRoutingHandler(routingService RouteCalculator, logger *slog.Logger) *RoutingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoutingHandler{
		routingService: routingService,
		logger:         logger,
	}
}

func (h *RoutingHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/route", h.CalculateRoute)
	r.GET("/health", h.Health)
}

func (h *RoutingHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *RoutingHandler) CalculateRoute(c *gin.Context) {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(requestIDHeader, requestID)

	var body models.RouteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Warn("rejecting route request", "request_id", requestID, "error", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     models.ErrorInvalidRequest,
			Message:   err.Error(),
			RequestID: requestID,
		})
		return
	}
	zones, err := body.Zones()
	if err != nil {
		h.logger.Warn("rejecting route request", "request_id", requestID, "error", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     models.ErrorInvalidRequest,
			Message:   err.Error(),
			RequestID: requestID,
		})
		return
	}

	res, err := h.routingService.CalculateRoute(c.Request.Context(), services.RouteRequest{
		RequestID:    requestID,
		Start:        body.StartCoordinate(),
		End:          body.EndCoordinate(),
		Zones:        zones,
		RadiusMeters: body.RadiusMeters,
	})
	if err != nil {
		h.writeError(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, models.NewRouteResponse(res))
}

func (h *RoutingHandler) writeError(c *gin.Context, requestID string, err error) {
	kind := services.KindOf(err)
	if kind == services.KindNoPathFound {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:     models.ErrorNoSafePath,
			Message:   models.MessageFloodBlocks,
			RequestID: requestID,
		})
		return
	}

	message := err.Error()
	var re *services.RouteError
	if errors.As(err, &re) && re.Err != nil {
		message = re.Err.Error()
	}
	if kind == "" {
		kind = services.KindInternal
	}
	c.JSON(statusFor(kind), models.ErrorResponse{
		Error:     models.ErrorRouteFailed,
		Message:   message,
		Kind:      string(kind),
		RequestID: requestID,
	})
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindInvalidRequest:
		return http.StatusBadRequest
	case services.KindInvalidEndpoint:
		return http.StatusUnprocessableEntity
	case services.KindCollaboratorTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
