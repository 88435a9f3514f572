package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ronalsilva/waller-microservice/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints for the authenticated caller.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, authenticate, idempotent fiber.Handler) {
	group := r.Group("/wallet", authenticate, idempotent)
	group.Post("/create", h.Create)
	group.Post("/deposit", h.Deposit)
	group.Post("/transfer", h.Transfer)
	group.Get("/transactions", h.Transactions)
}
