package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/swift-pay/swift_pay/internal/account"
	"github.com/swift-pay/swift_pay/internal/middleware"
)

// RegisterAccountRoutes wires registration, profile and admin endpoints.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler, jwtmw fiber.Handler) {
	users := r.Group("/users")
	users.Post("/register", h.Register)

	protected := users.Group("", jwtmw)
	protected.Get("/get-user", h.Me)
	protected.Post("/change-pin", h.ChangePIN)

	admin := protected.Group("", middleware.RequireAdmin())
	admin.Get("/", h.List)
	admin.Patch("/approve/:phone", h.Approve)
	admin.Patch("/status/:phone", h.SetStatus)
}
