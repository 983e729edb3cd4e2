package hub

import (
	"fmt"
	"net/http"
	"time"
)

// ServeSSE streams snapshots as Server-Sent Events
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// The stream outlives the server's WriteTimeout; recorders and other
	// writers without deadline support report ErrNotSupported, which is fine.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	client, err := h.Subscribe(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to subscribe SSE client")
		http.Error(w, "snapshot unavailable", http.StatusServiceUnavailable)
		return
	}
	defer h.Unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-client.Ready():
			for _, msg := range client.Drain() {
				if _, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", msg.Event, msg.Seq, msg.Data); err != nil {
					return
				}
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-client.Done():
			return

		case <-r.Context().Done():
			return
		}
	}
}
