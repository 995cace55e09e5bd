package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"flood-route-server/metrics"
)

// OpsHandler serves liveness and Prometheus metrics on the ops listener.
type OpsHandler struct {
	metrics http.Handler
}

func NewOpsHandler() *OpsHandler {
	return &OpsHandler{metrics: metrics.Handler()}
}

func (h *OpsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.Healthz).Methods("GET")
	router.Handle("/metrics", h.metrics).Methods("GET")
}

func (h *OpsHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
	})
}
