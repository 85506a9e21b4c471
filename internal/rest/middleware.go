package rest

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/trieu/leo-activation/business/affinity"
)

// RequestTrace copies the echo request id into the request context so log
// lines emitted below the handler layer carry it. Must be registered after
// the RequestID middleware, which only writes the response header.
func RequestTrace() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if rid != "" {
				ctx := context.WithValue(c.Request().Context(), affinity.TraceIDKey, rid)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}
