package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ronalsilva/waller-microservice/internal/auth"
)

// RegisterAuthRoutes wires login and logout.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, authenticate fiber.Handler) {
	r.Post("/login", rateLimiter, h.Login)
	r.Post("/logout", authenticate, h.Logout)
}
