package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careline/careline/internal/platform/metrics"
)

// Metrics records request count and latency per route template.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = statusFromError(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(route, c.Request().Method, strconv.Itoa(status), time.Since(start).Seconds())
			return err
		}
	}
}
