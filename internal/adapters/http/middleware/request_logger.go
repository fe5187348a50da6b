package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"app-access/internal/ports"
)

// RequestLogger logs one line per request. Handler errors are committed to
// the response first so the logged status is the one the client receives.
func RequestLogger(logger ports.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			duration := time.Since(started)
			ctx := c.Request().Context()
			args := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"route_pattern", c.Path(),
				"status", c.Response().Status,
				"duration", duration.String(),
			}
			if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
				args = append(args, "request_id", rid)
			}
			if id, ok := ports.IdentityFrom(ctx); ok {
				args = append(args, "user_id", id.UserID, "user_email", id.Email)
			}
			if c.Response().Status >= http.StatusInternalServerError {
				logger.Warn(ctx, "http request", args...)
				return nil
			}
			logger.Info(ctx, "http request", args...)
			return nil
		}
	}
}
