package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ContextLogger attaches a logger tagged with the request id to the request
// context. It must run after the RequestID middleware.
func ContextLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			l := logger.With().Str("request_id", requestID).Logger()

			req := c.Request()
			c.SetRequest(req.WithContext(l.WithContext(req.Context())))
			return next(c)
		}
	}
}
