package archive

import (
	"github.com/tech-arch1tect/ziphub/config"
	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/notify"
	"github.com/tech-arch1tect/ziphub/internal/progress"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewServiceFromConfig),
	fx.Provide(NewHandler),
)

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		OutputDir:        cfg.OutputDir,
		CompressionLevel: cfg.CompressionLevel,
		Simulator: progress.Simulator{
			Interval: cfg.Progress.Interval,
			Step:     cfg.Progress.Step,
			Cap:      cfg.Progress.Cap,
		},
	}
}

func NewServiceFromConfig(cfg *config.Config, notifier notify.Notifier, logger *logging.Logger) *Service {
	return NewService(OptionsFromConfig(cfg), notifier, logger)
}
