package health

import (
	"net/http"

	"github.com/tech-arch1tect/ziphub/config"

	"github.com/labstack/echo/v4"
)

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

type Handler struct {
	cfg     *config.Config
	clients ClientCounter
}

type Response struct {
	Status           string `json:"status"`
	OutputDir        string `json:"output_dir"`
	WatchDir         string `json:"watch_dir,omitempty"`
	WebSocketClients int    `json:"websocket_clients"`
}

func NewHandler(cfg *config.Config, clients ClientCounter) *Handler {
	return &Handler{cfg: cfg, clients: clients}
}

func (h *Handler) Health(c echo.Context) error {
	resp := Response{
		Status:    "healthy",
		OutputDir: h.cfg.OutputDir,
		WatchDir:  h.cfg.WatchDir,
	}
	if h.clients != nil {
		resp.WebSocketClients = h.clients.ClientCount()
	}
	return c.JSON(http.StatusOK, resp)
}
