package logging

import (
	"context"

	"github.com/tech-arch1tect/ziphub/config"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewLoggerFromConfig),
	fx.Invoke(RegisterLoggerShutdown),
)

func NewLoggerFromConfig(cfg *config.Config) (*Logger, error) {
	return NewLoggerWithFormat(cfg.LogLevel, Format(cfg.LogFormat))
}

func RegisterLoggerShutdown(lc fx.Lifecycle, logger *Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// stderr sync returns EINVAL on some platforms
			_ = logger.Sync()
			return nil
		},
	})
}
