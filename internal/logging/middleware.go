package logging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

var quietPaths = map[string]bool{
	"/api/health": true,
	"/ws/events":  true,
}

func RequestLoggingMiddleware(logger *Logger) echo.MiddlewareFunc {
	logger = logger.With(zap.String("component", "http"))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			requestID := req.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
				req.Header.Set(RequestIDHeader, requestID)
			}
			c.Response().Header().Set(RequestIDHeader, requestID)

			err := next(c)

			status := c.Response().Status
			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("source_ip", c.RealIP()),
				zap.Int("status_code", status),
				zap.Int64("response_size", c.Response().Size),
				zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0),
			}
			if operationID := c.Param("operationId"); operationID != "" {
				fields = append(fields, zap.String("operation_id", operationID))
			}

			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					fields = append(fields, zap.String("error", fmt.Sprintf("%v", he.Message)))
				} else {
					fields = append(fields, zap.Error(err))
				}
				logger.Warn("request failed", fields...)
				return err
			}

			if quietPaths[req.URL.Path] {
				logger.Debug("request handled", fields...)
				return nil
			}
			logger.Info("request handled", fields...)
			return nil
		}
	}
}
