package http

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/opsboard/internal/logging"
)

// RequestLogger attaches a request-scoped slog logger to the context and logs
// request start and completion.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
			)

			ctx := logging.ContextWithLogger(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))

			start := time.Now()
			logger.InfoContext(ctx, "request started")
			err := next(c)
			logger.InfoContext(ctx, "request completed",
				"duration", time.Since(start),
				"status", c.Response().Status,
			)
			return err
		}
	}
}
