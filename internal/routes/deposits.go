package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casino-royal/cashier/internal/deposit"
)

// RegisterDepositRoutes wires deposit lifecycle endpoints.
func RegisterDepositRoutes(r fiber.Router, h *deposit.Handler) {
	r.Post("/deposits", h.Open)
	r.Get("/transactions/:id", h.Get)
}
