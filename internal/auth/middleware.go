package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net"
	"net/url"
	"strings"

	"github.com/tech-arch1tect/ziphub/internal/audit"
	"github.com/tech-arch1tect/ziphub/internal/common"
	"github.com/tech-arch1tect/ziphub/internal/logging"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TokenMiddleware requires "Authorization: Bearer <token>". With no token
// configured the server runs in local mode: only loopback clients are let
// through, and browser requests must also come from a loopback origin.
func TokenMiddleware(accessToken string, logger *logging.Logger, auditService *audit.Service) echo.MiddlewareFunc {
	logger = logger.With(zap.String("component", "auth"))

	reject := func(c echo.Context, reason string) error {
		sourceIP := c.RealIP()
		logger.Warn("authentication failed",
			zap.String("source_ip", sourceIP),
			zap.String("reason", reason),
		)
		auditService.LogAuthEvent(sourceIP, reason)
		return common.SendUnauthorized(c, reason)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if accessToken == "" {
				if !IsLoopback(c.Request().RemoteAddr) {
					return reject(c, "Access token not configured; only local clients are allowed")
				}
				// any page in a local browser reaches loopback too
				if !IsLoopbackOrigin(c.Request().Header.Get(echo.HeaderOrigin)) {
					return reject(c, "Access token not configured; cross-origin browser requests are not allowed")
				}
				return next(c)
			}

			token := ExtractBearerToken(c.Request().Header.Get("Authorization"))
			if token == "" {
				token = c.QueryParam("token")
			}
			if token == "" {
				return reject(c, "Bearer token required")
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(accessToken)) != 1 {
				logger.Debug("token mismatch", zap.String("token_hash", HashToken(token)))
				return reject(c, "Invalid token")
			}

			return next(c)
		}
	}
}

func ExtractBearerToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func IsLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// IsLoopbackOrigin reports whether an Origin header names a loopback host.
// Requests without an Origin header do not come from a browser page and pass.
func IsLoopbackOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func HashToken(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])[:16]
}
