package health

import (
	"github.com/tech-arch1tect/ziphub/config"
	"github.com/tech-arch1tect/ziphub/internal/websocket"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(func(cfg *config.Config, hub *websocket.Hub) *Handler {
		return NewHandler(cfg, hub)
	}),
)
