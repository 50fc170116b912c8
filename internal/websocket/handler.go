package websocket

import (
	"github.com/labstack/echo/v4"
)

// Handler upgrades /ws/events. Authentication is applied by the route's
// token middleware before the upgrade.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) HandleEvents(c echo.Context) error {
	return h.hub.ServeWebSocket(c)
}
