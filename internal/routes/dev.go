package routes

import (
	"crypto/subtle"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/casino-royal/cashier/internal/deposit"
	"github.com/casino-royal/cashier/internal/middleware"
)

const internalTokenHeader = "X-Internal-Token"

// RegisterDevRoutes wires the deposit simulation endpoint. Never registered
// in production; when a token is configured the caller must present it.
func RegisterDevRoutes(app *fiber.App, d Deps, h *deposit.Handler) {
	if !d.Cfg.IsDev() {
		return
	}

	dev := app.Group("/dev", middleware.RateLimit(d.Cache, "dev", 30))
	if token := d.Cfg.DevCompleteToken; token != "" {
		dev.Use(func(c *fiber.Ctx) error {
			provided := c.Get(internalTokenHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				return fiber.NewError(http.StatusUnauthorized, "invalid internal token")
			}
			return c.Next()
		})
	}

	dev.Post("/complete-deposit", h.DevComplete)
}
