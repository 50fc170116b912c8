package audit

import (
	"context"

	"github.com/tech-arch1tect/ziphub/config"
	"github.com/tech-arch1tect/ziphub/internal/logging"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewServiceFromConfig),
	fx.Invoke(RegisterShutdown),
)

func NewServiceFromConfig(cfg *config.Config, logger *logging.Logger) (*Service, error) {
	return NewService(
		cfg.AuditLogEnabled,
		cfg.AuditLogFilePath,
		cfg.AuditLogSizeLimitBytes(),
		logger,
	)
}

func RegisterShutdown(lc fx.Lifecycle, service *Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return service.Close()
		},
	})
}
