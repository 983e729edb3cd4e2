package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"lanwatch/internal/domain"
)

// maxReportBytes bounds one agent submission
const maxReportBytes = 8 << 20

// ReportResponse is the body of a processed agent report
type ReportResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Changes *domain.ChangeSet `json:"changes"`
}

// SubmitReport accepts a JSON array of observations from a scan agent
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, "Report too large", err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(w, "Failed to read request body", err.Error(), http.StatusBadRequest)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		h.writeError(w, "Invalid request body", "body is empty", http.StatusBadRequest)
		return
	}

	var batch []domain.Observation
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err := decodeStrict(r, &batch); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if batch == nil {
		h.writeError(w, "Invalid request body", "expected a JSON array of observations", http.StatusBadRequest)
		return
	}

	cs, err := h.reports.Submit(r.Context(), batch)
	if err != nil {
		h.log.Error().Err(err).Str("changes", cs.Summary()).Msg("Failed to process report")
		h.writeError(w, "Failed to process report", err.Error(), http.StatusInternalServerError)
		return
	}

	h.log.Info().Int("observations", len(batch)).Str("changes", cs.Summary()).Msg("Processed agent report")
	h.writeJSON(w, ReportResponse{
		Success: true,
		Message: fmt.Sprintf("Processed %d observations (%s)", len(batch), cs.Summary()),
		Changes: cs,
	}, http.StatusOK)
}
