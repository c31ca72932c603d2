package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"convq/internal/infrastructure/logger"
	"convq/internal/service"
)

const keepAliveInterval = 15 * time.Second

type SSEHandler struct {
	bus   *service.Bus
	queue QueueService
}

func NewSSEHandler(bus *service.Bus, queue QueueService) *SSEHandler {
	return &SSEHandler{
		bus:   bus,
		queue: queue,
	}
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendSnapshot writes the full queue state so a fresh subscriber can
// render before the first live notification arrives.
func (h *SSEHandler) sendSnapshot(w http.ResponseWriter) error {
	payload, err := json.Marshal(map[string]any{
		"jobs": h.queue.Jobs(),
		"busy": h.queue.Busy(),
	})
	if err != nil {
		return err
	}
	sseWrite(w, "queue", string(payload))
	return nil
}

func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		if err := h.sendSnapshot(w); err != nil {
			logger.Error.Printf("sse snapshot: %v", err)
			return
		}

		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)

		ctx := r.Context()
		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case n, ok := <-ch:
				if !ok {
					return
				}
				payload, err := json.Marshal(n)
				if err != nil {
					logger.Error.Printf("sse encode: %v", err)
					continue
				}
				sseWrite(w, string(n.Type), string(payload))
			}
		}
	}
}
