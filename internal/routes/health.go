package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds the liveness endpoint, including dependency pings.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		healthy := true
		if d.DB != nil {
			if err := d.DB.Ping(ctx); err != nil {
				healthy = false
			}
		}
		if d.Cache != nil {
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				healthy = false
			}
		}

		status := http.StatusOK
		label := "OK"
		if !healthy {
			status = http.StatusServiceUnavailable
			label = "DEGRADED"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    label,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
