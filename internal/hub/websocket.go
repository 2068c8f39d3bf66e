package hub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FlorentB974/lanmon/internal/events"
	"github.com/FlorentB974/lanmon/internal/logger"
)

// clientFrame is the only inbound message shape the stream accepts.
type clientFrame struct {
	Type string `json:"type"`
}

// ServeWS upgrades the connection and streams events as JSON objects.
// Clients may send {"type":"ping"} and get {"type":"pong"} back;
// everything else inbound is ignored.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Error(err))
		return
	}

	sub := h.publisher.Subscribe()
	h.log.Debug("websocket client connected", logger.String("remote", r.RemoteAddr))

	// Application-level pong requests flow through the write pump so
	// there is only ever one writer on the connection.
	pongs := make(chan struct{}, 1)
	done := make(chan struct{})

	go h.readPump(conn, pongs, done)
	h.writePump(conn, sub, pongs, done)

	h.publisher.Unsubscribe(sub)
	conn.Close()
	h.log.Debug("websocket client disconnected",
		logger.String("remote", r.RemoteAddr),
		logger.Int64("dropped", int64(sub.Dropped())))
}

// readPump consumes inbound frames until the peer goes away. It feeds
// ping requests to the write pump and refreshes the read deadline on
// protocol pongs.
func (h *Hub) readPump(conn *websocket.Conn, pongs chan<- struct{}, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame clientFrame
		if json.Unmarshal(payload, &frame) != nil {
			continue
		}
		if frame.Type == "ping" {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}

// writePump owns all writes: the greeting, event messages, pong
// replies and protocol pings.
func (h *Hub) writePump(conn *websocket.Conn, sub *events.Subscriber, pongs <-chan struct{}, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	greeting := events.Message{
		Type: "connected",
		Data: map[string]any{"message": "connected to event stream"},
	}
	if h.writeJSON(conn, greeting) != nil {
		return
	}

	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if h.writeJSON(conn, msg) != nil {
				return
			}

		case <-pongs:
			pong := events.Message{Type: "pong", Data: map[string]any{}}
			if h.writeJSON(conn, pong) != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if conn.WriteMessage(websocket.PingMessage, nil) != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func (h *Hub) writeJSON(conn *websocket.Conn, msg events.Message) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Debug("websocket write failed", logger.Error(err))
		return err
	}
	return nil
}
