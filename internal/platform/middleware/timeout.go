package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careline/careline/pkg/envelope"
)

// RequestTimeout sets a context deadline on each request. Store and LLM calls
// receive the request context, so they are cancelled with it; if the handler
// has not returned by the deadline a 504 envelope is written. A zero timeout
// disables the middleware.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if timeout <= 0 {
			return next
		}
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					if c.Response().Committed {
						return nil
					}
					return envelope.Fail(c, http.StatusGatewayTimeout,
						http.StatusText(http.StatusGatewayTimeout),
						"request processing exceeded the allowed time limit")
				}
				return ctx.Err()
			}
		}
	}
}
