package monitoring

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestMetrics records per-route request latency. The route template
// is used as the path label so parameterized routes do not explode
// cardinality.
func RequestMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			RequestDuration.WithLabelValues(
				c.Request().Method, path, strconv.Itoa(status),
			).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
