package hub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/FlorentB974/lanmon/internal/logger"
)

// ServeSSE handles Server-Sent Events connections. Each message goes
// out as one "data:" frame; comments keep intermediaries from timing
// out idle streams.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sub := h.publisher.Subscribe()
	defer h.publisher.Unsubscribe(sub)

	h.log.Debug("sse client connected", logger.String("remote", r.RemoteAddr))
	defer h.log.Debug("sse client disconnected", logger.String("remote", r.RemoteAddr))

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAlivePeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Error("failed to marshal stream message", logger.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
