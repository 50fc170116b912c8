package watch

import (
	"context"

	"github.com/tech-arch1tect/ziphub/config"
	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/operations"

	"go.uber.org/fx"
)

// Module starts the drop folder watcher when a watch directory is configured.
var Module = fx.Options(
	fx.Invoke(registerWatcher),
)

func registerWatcher(lc fx.Lifecycle, cfg *config.Config, ops *operations.Service, logger *logging.Logger) {
	if cfg.WatchDir == "" {
		return
	}

	w := New(cfg.WatchDir, cfg.WatchSettle, ops, logger)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return w.Start()
		},
		OnStop: func(context.Context) error {
			return w.Stop()
		},
	})
}
