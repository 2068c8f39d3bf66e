// Package hub exposes the event stream to clients over WebSocket and
// Server-Sent Events. Both transports are thin bridges over the events
// publisher: each connection owns one subscriber, so a stalled browser
// only ever loses its own oldest messages and never affects scanning.
package hub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FlorentB974/lanmon/internal/events"
	"github.com/FlorentB974/lanmon/internal/logger"
)

const (
	// writeWait bounds a single write to a client.
	writeWait = 10 * time.Second
	// pongWait is how long to wait for a pong before dropping the
	// connection; protocol pings go out at a fraction of it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// keepAlivePeriod spaces SSE keep-alive comments.
	keepAlivePeriod = 30 * time.Second
)

// Hub serves the real-time transports.
type Hub struct {
	publisher *events.Publisher
	upgrader  websocket.Upgrader
	log       logger.Logger
}

// New creates a Hub over the publisher.
func New(publisher *events.Publisher, log logger.Logger) *Hub {
	return &Hub{
		publisher: publisher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard may be served from another origin on the LAN.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.Named("hub"),
	}
}

// ClientCount reports the number of connected stream consumers.
func (h *Hub) ClientCount() int {
	return h.publisher.SubscriberCount()
}
