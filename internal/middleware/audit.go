package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ronalsilva/waller-microservice/internal/apierror"
)

// Audit writes one structured record per request. Server errors are logged at
// error level, client errors at warn, everything else at info.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// the error handler renders after us
			status = apierror.From(err).Status
		}

		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.IP()),
		}
		if requestID, _ := c.Locals(RequestIDKey).(string); requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if uid, _ := c.Locals(UserIDKey).(string); uid != "" {
			attrs = append(attrs, slog.String("user_id", uid))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}

		level, msg := slog.LevelInfo, "request completed"
		switch {
		case status >= fiber.StatusInternalServerError:
			level, msg = slog.LevelError, "request failed"
		case status >= fiber.StatusBadRequest:
			level, msg = slog.LevelWarn, "request rejected"
		}
		logger.LogAttrs(context.Background(), level, msg, attrs...)
		return err
	}
}
