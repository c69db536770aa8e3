package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/swift-pay/swift_pay/internal/auth"
)

// RegisterAuthRoutes wires login, refresh and logout endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, jwtmw fiber.Handler) {
	users := r.Group("/users")
	users.Post("/login", rateLimiter, h.Login)
	users.Post("/refresh-token", h.Refresh)
	users.Get("/logout", jwtmw, h.Logout)
}
