// Package server exposes the worker's operational HTTP surface: health,
// readiness and Prometheus metrics. The worker itself has no request API;
// everything it does arrives over the queue.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/esignworks/connect-worker/internal/messaging"
)

// Handler serves the health and readiness endpoints.
type Handler struct {
	queue messaging.HealthChecker
}

// NewHandler creates a handler reporting on the given queue connection.
func NewHandler(queue messaging.HealthChecker) *Handler {
	return &Handler{queue: queue}
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

// Ready reports whether the worker can do useful work. A worker without a
// queue connection is alive but not ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := messaging.CheckClientHealth(h.queue)

	w.Header().Set("Content-Type", "application/json")
	if !status.Connected {
		slog.Warn("readiness check failed",
			"request_id", GetRequestID(r.Context()),
			"queue_error", status.Error)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "not ready",
			"queue":  status,
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ready",
		"queue":  status,
	})
}

// NewRouter constructs a ServeMux with the operational routes registered.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return RequestID(mux)
}
