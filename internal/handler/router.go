package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lanwatch/internal/hub"
)

// NewRouter registers the collector routes and applies the middleware chain
func NewRouter(h *Handler, events *hub.Hub, log zerolog.Logger) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()

	// Agent ingestion
	api.HandleFunc("/agent/report", h.SubmitReport).Methods(http.MethodPost)

	// Device inventory
	api.HandleFunc("/devices", h.ListDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices", h.CreateDevice).Methods(http.MethodPost)
	api.HandleFunc("/devices/{address}", h.GetDevice).Methods(http.MethodGet)
	api.HandleFunc("/devices/{address}", h.UpdateDevice).Methods(http.MethodPut)
	api.HandleFunc("/devices/{address}", h.DeleteDevice).Methods(http.MethodDelete)

	// Bulk transfer
	api.HandleFunc("/export/{format}", h.ExportDevices).Methods(http.MethodGet)
	api.HandleFunc("/import/{format}", h.ImportDevices).Methods(http.MethodPost)

	// Real-time channels
	r.HandleFunc("/events", events.ServeSSE).Methods(http.MethodGet)
	r.HandleFunc("/ws", events.ServeWS).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return Chain(r,
		Recover(log),
		CORS,
		Logger(log),
	)
}
