package middleware

import (
	"time"

	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)
			if err != nil {
				// Let echo write the error response so the logged status is final.
				c.Error(err)
			}

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			if status := c.Response().Status; err == nil && status >= 500 {
				evt = logger.Error()
			}

			// The clinic is resolved further down the chain, on the request
			// context that handlers replaced.
			if clinicID := auth.ClinicIDFromContext(c.Request().Context()); clinicID != uuid.Nil {
				evt = evt.Str("clinic_id", clinicID.String())
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return nil
		}
	}
}
