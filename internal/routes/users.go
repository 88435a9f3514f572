package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ronalsilva/waller-microservice/internal/users"
	"github.com/ronalsilva/waller-microservice/internal/wallet"
)

// RegisterUserRoutes wires profile CRUD and the balance lookup. Registration is
// public; everything else requires a resolved identity.
func RegisterUserRoutes(r fiber.Router, h *users.Handler, wallets *wallet.Handler, authenticate fiber.Handler) {
	r.Post("/users", h.Create)

	group := r.Group("/users", authenticate)
	group.Get("/balance", wallets.Balance)
	group.Get("/", h.Get)
	group.Put("/", h.Update)
	group.Delete("/", h.Delete)
}
