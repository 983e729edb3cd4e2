package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
	"lanwatch/internal/service"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// MessageResponse is the body of a mutation that returns no resource
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Handler serves the device and report API
type Handler struct {
	devices *service.DeviceService
	reports *service.ReportService
	log     zerolog.Logger
}

// New creates the API handler
func New(devices *service.DeviceService, reports *service.ReportService, log zerolog.Logger) *Handler {
	return &Handler{
		devices: devices,
		reports: reports,
		log:     log,
	}
}

// Health reports liveness including a store ping
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.devices.Ping(r.Context()); err != nil {
		h.writeError(w, "Device store unavailable", err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{
		Error:   error,
		Details: details,
	}, statusCode)
}

// writeServiceError maps domain errors onto status codes
func (h *Handler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidAddress), errors.Is(err, domain.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateKey):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
	}
	h.writeError(w, msg, err.Error(), status)
}

// decodeStrict decodes a single JSON value, rejecting unknown fields and
// trailing content
func decodeStrict(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}
