package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charliek/herolog/internal/domain"
)

// StreamLogs handles GET /api/v1/logs/stream (SSE).
// Records arrive as unnamed events, connection changes as "state" events.
func (h *Handlers) StreamLogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "streaming not supported",
			Code:  domain.ErrCodeStreamingNotSupported,
		})
		return
	}

	predicates, mode, err := h.queryFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subID, records := h.logManager.Subscribe(predicates, mode)
	defer h.logManager.Unsubscribe(subID)

	states := h.stream.SubscribeStates()
	defer h.stream.UnsubscribeStates(states)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	// Slow clients lose records on the subscription channel; a failed write ends the stream.
	ctx := r.Context()
	for {
		var (
			event string
			data  []byte
		)

		select {
		case <-ctx.Done():
			return
		case record, ok := <-records:
			if !ok {
				return
			}
			data, err = json.Marshal(ToLogRecordResponse(record))
		case state, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			event = "state"
			data, err = json.Marshal(ToConnectionResponse(state))
		}
		if err != nil {
			continue
		}

		if event != "" {
			_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		} else {
			_, err = fmt.Fprintf(w, "data: %s\n\n", data)
		}
		if err != nil {
			h.logger.Debug("sse write failed", "subscription", subID, "error", err)
			return
		}
		flusher.Flush()
	}
}
