package operations

import (
	"context"

	"github.com/tech-arch1tect/ziphub/config"
	"github.com/tech-arch1tect/ziphub/internal/archive"
	"github.com/tech-arch1tect/ziphub/internal/audit"
	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/websocket"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewServiceWithConfig),
	fx.Provide(NewHandler),
	fx.Invoke(registerShutdown),
)

func NewServiceWithConfig(cfg *config.Config, archiveService *archive.Service, hub *websocket.Hub, auditService *audit.Service, logger *logging.Logger) *Service {
	return NewService(archiveService, hub, auditService, cfg.OperationRetention, logger)
}

func registerShutdown(lc fx.Lifecycle, service *Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return service.Shutdown(ctx)
		},
	})
}
