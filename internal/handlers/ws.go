package handlers

import (
	"net/http"
	"time"

	"github.com/agentgate/agentgate/internal/events"
	"github.com/agentgate/agentgate/internal/logging"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const wsPingInterval = 30 * time.Second

// EventStreamHandlers streams lifecycle events over WebSocket
type EventStreamHandlers struct {
	bus    events.Bus
	logger *logging.Logger
}

// NewEventStreamHandlers creates new event stream handlers
func NewEventStreamHandlers(bus events.Bus, logger *logging.Logger) *EventStreamHandlers {
	return &EventStreamHandlers{bus: bus, logger: logger}
}

// Stream upgrades the connection and forwards lifecycle events until the
// client goes away
func (h *EventStreamHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", err, nil)
		return
	}
	defer conn.Close()

	sub, cancel := h.bus.Subscribe()
	defer cancel()

	// Drain client frames so close messages are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
