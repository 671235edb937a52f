package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-clip-classifier/internal/metrics"
)

// RequestMetrics records count and latency for every request.
func RequestMetrics(m *metrics.Metrics) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture request data before the handler runs (Fiber reuses context objects)
		method := c.Method()

		err := c.Next()

		// Route pattern, not raw path, to keep label cardinality bounded
		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		m.ObserveHTTP(method, route, status, time.Since(start))
		return err
	}
}
