// Server-sent events stream for dashboard clients.
package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gifter-backend/internal/events"
)

// keepAliveInterval bounds how long an idle SSE connection goes without
// traffic, so proxies do not cut it off.
const keepAliveInterval = 30 * time.Second

// StreamHandler pushes automation events to the client as server-sent
// events. It holds the connection open until the client disconnects.
type StreamHandler struct {
	Hub *events.Hub
}

// NewStreamHandler constructs a StreamHandler bound to the given hub.
func NewStreamHandler(hub *events.Hub) *StreamHandler {
	return &StreamHandler{Hub: hub}
}

// Stream subscribes the client to the event hub and writes each event as an
// SSE frame. Events that arrive while the client is too slow to read are
// dropped by the hub rather than buffered without bound.
func (h *StreamHandler) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch, cancel := h.Hub.Subscribe()
	defer cancel()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			c.SSEvent(ev.Type, string(payload))
			c.Writer.Flush()
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
