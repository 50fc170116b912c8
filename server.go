package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/tech-arch1tect/ziphub/config"
	"github.com/tech-arch1tect/ziphub/internal/archive"
	"github.com/tech-arch1tect/ziphub/internal/audit"
	"github.com/tech-arch1tect/ziphub/internal/auth"
	"github.com/tech-arch1tect/ziphub/internal/health"
	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/notify"
	"github.com/tech-arch1tect/ziphub/internal/operations"
	"github.com/tech-arch1tect/ziphub/internal/ssl"
	"github.com/tech-arch1tect/ziphub/internal/watch"
	"github.com/tech-arch1tect/ziphub/internal/websocket"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func newServerApp(cfg *config.Config) *fx.App {
	return fx.New(
		config.Module(cfg),
		logging.Module,
		audit.Module,
		websocket.Module,
		archive.Module,
		operations.Module,
		health.Module,
		watch.Module,
		fx.WithLogger(func(logger *logging.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Zap()}
		}),
		fx.Provide(NewServerNotifier),
		fx.Provide(NewEcho),
		fx.Invoke(RegisterRoutes),
		fx.Invoke(StartServer),
	)
}

// NewServerNotifier delivers completion notifications to the log, to
// websocket clients and, when configured, to an external command.
func NewServerNotifier(cfg *config.Config, hub *websocket.Hub, logger *logging.Logger) (notify.Notifier, error) {
	return newNotifier(cfg, logger, hub)
}

func newNotifier(cfg *config.Config, logger *logging.Logger, extra ...notify.Notifier) (notify.Notifier, error) {
	notifiers := append([]notify.Notifier{notify.NewLogNotifier(logger)}, extra...)
	if cfg.NotifyCommand != "" {
		command, err := notify.NewCommandNotifier(cfg.NotifyCommand)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, command)
	}
	return notify.Multi(notifiers...), nil
}

func NewEcho(logger *logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(logging.RequestLoggingMiddleware(logger))
	e.Use(echomiddleware.Recover())
	return e
}

func RegisterRoutes(
	e *echo.Echo,
	cfg *config.Config,
	logger *logging.Logger,
	auditService *audit.Service,
	healthHandler *health.Handler,
	archiveHandler *archive.Handler,
	operationsHandler *operations.Handler,
	wsHandler *websocket.Handler,
) {
	authMiddleware := auth.TokenMiddleware(cfg.AccessToken, logger, auditService)

	api := e.Group("/api")
	api.Use(authMiddleware)

	api.GET("/health", healthHandler.Health)

	api.POST("/compress", archiveHandler.Compress)
	api.POST("/extract", archiveHandler.Extract)
	api.GET("/preview", archiveHandler.Preview)

	api.GET("/operations", operationsHandler.ListOperations)
	api.POST("/operations", operationsHandler.StartOperation)
	api.GET("/operations/:operationId", operationsHandler.GetOperation)
	api.GET("/operations/:operationId/stream", operationsHandler.StreamOperation)
	api.GET("/operations/:operationId/result", operationsHandler.WaitResult)

	e.GET("/ws/events", wsHandler.HandleEvents, authMiddleware)
}

func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *logging.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := ":" + cfg.Port
			start := func() error { return e.Start(addr) }
			if cfg.TLSEnabled {
				certPath, keyPath, err := ssl.NewCertificateManager(cfg.TLSCertDir, logger).EnsureCertificates()
				if err != nil {
					return err
				}
				start = func() error { return e.StartTLS(addr, certPath, keyPath) }
			}

			go func() {
				logger.Info("server listening", zap.String("port", cfg.Port), zap.Bool("tls", cfg.TLSEnabled))
				if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}
