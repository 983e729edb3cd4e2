package handler

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/blake2b"

	"lanwatch/internal/domain"
	"lanwatch/internal/service"
)

// DeviceList is the body of GET /api/devices
type DeviceList struct {
	Devices []domain.Device `json:"devices"`
}

// ListDevices returns every device, optionally filtered by ?q=
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, "Failed to list devices", err)
		return
	}
	if devices == nil {
		devices = []domain.Device{}
	}

	body, err := json.Marshal(DeviceList{Devices: devices})
	if err != nil {
		h.writeError(w, "Failed to encode devices", err.Error(), http.StatusInternalServerError)
		return
	}

	tag := etag(body)
	w.Header().Set("ETag", tag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

// GetDevice returns a single device
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := h.devices.Get(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		h.writeServiceError(w, "Failed to get device", err)
		return
	}
	h.writeJSON(w, d, http.StatusOK)
}

// CreateDevice adds a manually entered device
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var input service.DeviceInput
	if err := decodeStrict(r, &input); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	d, err := h.devices.Create(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, "Failed to create device", err)
		return
	}
	h.writeJSON(w, d, http.StatusCreated)
}

// UpdateDevice applies a partial edit
func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	var patch service.DevicePatch
	if err := decodeStrict(r, &patch); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	d, err := h.devices.Update(r.Context(), mux.Vars(r)["address"], patch)
	if err != nil {
		h.writeServiceError(w, "Failed to update device", err)
		return
	}
	h.writeJSON(w, d, http.StatusOK)
}

// DeleteDevice removes a device
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if err := h.devices.Delete(r.Context(), address); err != nil {
		h.writeServiceError(w, "Failed to delete device", err)
		return
	}
	h.writeJSON(w, MessageResponse{Success: true, Message: "Device " + address + " deleted"}, http.StatusOK)
}

// etag is a strong validator over the encoded device list
func etag(body []byte) string {
	sum := blake2b.Sum256(bytes.TrimSpace(body))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
