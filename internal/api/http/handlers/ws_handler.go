package handlers

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/tiback/helpdesk/internal/fanout"
)

// WSHandler bridges websocket connections to the fanout hub. A
// connection manages its own channel membership with join/leave
// frames; the hub pushes matching events back over the socket.
type WSHandler struct {
	hub    *fanout.Hub
	logger *zap.Logger
}

// NewWSHandler constructs handler.
func NewWSHandler(hub *fanout.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

// Upgrade gates the route to websocket upgrade requests.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

type wsCommand struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type wsAck struct {
	OK      bool   `json:"ok"`
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
	Error   string `json:"error,omitempty"`
}

// wsConn serializes writes; acks and pushed events come from
// different goroutines and the underlying connection allows only one
// writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// Serve handles one websocket connection's lifetime. A reader
// goroutine applies join/leave commands while the main loop drains the
// subscriber's event stream until the hub drops it or the peer hangs
// up.
func (h *WSHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		sub := h.hub.NewSubscriber()
		defer h.hub.Drop(sub)
		wc := &wsConn{conn: conn}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				var cmd wsCommand
				if err := conn.ReadJSON(&cmd); err != nil {
					return
				}
				h.apply(wc, sub, cmd)
			}
		}()

		for {
			select {
			case event, ok := <-sub.Events():
				if !ok {
					return
				}
				if err := wc.writeJSON(event); err != nil {
					h.logger.Debug("websocket write failed",
						zap.String("subscriber", sub.ID()),
						zap.Error(err))
					return
				}
			case <-done:
				return
			}
		}
	})
}

func (h *WSHandler) apply(wc *wsConn, sub *fanout.Subscriber, cmd wsCommand) {
	ack := wsAck{Action: cmd.Action, Channel: cmd.Channel}
	switch {
	case cmd.Channel == "":
		ack.Error = "channel required"
	case cmd.Action == "join":
		h.hub.Join(sub, cmd.Channel)
		ack.OK = true
	case cmd.Action == "leave":
		h.hub.Leave(sub, cmd.Channel)
		ack.OK = true
	default:
		ack.Error = "unknown action"
	}
	if err := wc.writeJSON(ack); err != nil {
		h.logger.Debug("websocket ack failed", zap.String("subscriber", sub.ID()), zap.Error(err))
	}
}
