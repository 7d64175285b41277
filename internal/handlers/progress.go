package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"media-variants/internal/logging"
	"media-variants/internal/progress"
)

// ProgressStream serves regeneration progress for one media record as
// server-sent events. The stream stays open until the client disconnects;
// clients typically close it after the "complete" or "failed" event.
func (h *Handlers) ProgressStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeJSONError(w, "Progress streaming not available", http.StatusNotImplemented)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	id := mux.Vars(r)["id"]
	if _, err := h.db.MediaByID(r.Context(), id); err != nil {
		writeJSONError(w, "Media not found", http.StatusNotFound)
		return
	}

	events, cancel := h.hub.Subscribe(progress.Channel(id))
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, "retry: 3000\n\n")
	flusher.Flush()

	logging.Debug("Progress stream opened for %s", id)
	for {
		select {
		case data, open := <-events:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			logging.Debug("Progress stream closed for %s", id)
			return
		}
	}
}
