package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"lanwatch/internal/codec"
	"lanwatch/internal/domain"
)

const maxImportBytes = 8 << 20

// ImportResponse is the body returned by POST /api/import/{format}
type ImportResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// ExportDevices writes the inventory in the requested format
func (h *Handler) ExportDevices(w http.ResponseWriter, r *http.Request) {
	exporter, err := codec.ExporterFor(mux.Vars(r)["format"])
	if err != nil {
		h.writeError(w, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}

	devices, err := h.devices.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, "Failed to list devices", err)
		return
	}
	domain.SortByLastSeen(devices)

	filename := fmt.Sprintf("lanwatch-%s.%s", time.Now().UTC().Format("20060102"), extension(exporter.Format()))
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := exporter.Export(devices, w); err != nil {
		h.log.Error().Err(err).Str("format", exporter.Format()).Msg("Export failed")
	}
}

// ImportDevices adds devices from an uploaded document without touching
// existing records
func (h *Handler) ImportDevices(w http.ResponseWriter, r *http.Request) {
	importer, err := codec.ImporterFor(mux.Vars(r)["format"])
	if err != nil {
		h.writeError(w, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, "Import too large", err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(w, "Failed to read request body", err.Error(), http.StatusBadRequest)
		return
	}

	devices, err := importer.Parse(bytes.NewReader(body))
	if err != nil {
		h.writeError(w, "Invalid import document", err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.devices.Import(r.Context(), devices)
	if err != nil {
		h.writeServiceError(w, "Import failed", err)
		return
	}

	h.writeJSON(w, ImportResponse{
		Success: true,
		Message: fmt.Sprintf("Imported %d devices (%d skipped, %d rejected)", result.Created, result.Skipped, len(result.Errors)),
		Created: result.Created,
		Skipped: result.Skipped,
		Errors:  result.Errors,
	}, http.StatusOK)
}

func extension(format string) string {
	if format == "ansible" {
		return "yaml"
	}
	return format
}
