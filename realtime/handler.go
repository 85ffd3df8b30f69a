package realtime

import (
	"encoding/json"
	"log/slog"

	"record-sync/middleware"
	"record-sync/models"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// relayEvents maps the inbound event kinds a device may send to the event
// relayed to the user's other connections.
var relayEvents = map[string]string{
	"new_call":       EventCallUpdate,
	"update_call":    EventCallUpdate,
	"new_message":    EventMessageUpdate,
	"update_message": EventMessageUpdate,
}

type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Handler struct {
	hub    *Hub
	logger *slog.Logger
}

func NewHandler(hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

// Handshake gates the websocket upgrade: the connection must carry a valid
// token before it is ever joined to a channel.
func (h *Handler) Handshake() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Query("token")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Token not provided",
			})
		}

		ident, err := middleware.VerifyToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid token",
			})
		}

		c.Locals("identity", ident)
		return c.Next()
	}
}

// Serve runs one authenticated connection: join the user's channel, relay
// inbound record events, and pump channel events back out until the
// transport disconnects.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ident, ok := conn.Locals("identity").(models.Identity)
		if !ok {
			conn.Close()
			return
		}

		sub := h.hub.Subscribe(ident.UserID)
		defer h.hub.Unsubscribe(sub)

		h.logger.Info("user connected", "user_id", ident.UserID)
		defer h.logger.Info("user disconnected", "user_id", ident.UserID)

		go h.writePump(conn, sub)

		for {
			var in inboundEvent
			if err := conn.ReadJSON(&in); err != nil {
				return
			}

			name, ok := relayEvents[in.Event]
			if !ok {
				h.logger.Debug("ignoring unknown event", "event", in.Event, "user_id", ident.UserID)
				continue
			}

			h.hub.Publish(ident.UserID, Event{Name: name, Payload: in.Data})
		}
	})
}

func (h *Handler) writePump(conn *websocket.Conn, sub *Subscriber) {
	for {
		select {
		case ev := <-sub.C:
			if err := conn.WriteJSON(ev); err != nil {
				conn.Close()
				return
			}
		case <-sub.Done():
			return
		}
	}
}
