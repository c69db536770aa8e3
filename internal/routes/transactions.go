package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/swift-pay/swift_pay/internal/transfer"
)

// RegisterTransactionRoutes wires the transfer engine endpoints. All of them
// require an authenticated session; the idempotency middleware runs after
// auth so replay keys are scoped to the caller.
func RegisterTransactionRoutes(r fiber.Router, h *transfer.Handler, jwtmw, idem fiber.Handler) {
	tx := r.Group("/transactions", jwtmw, idem)
	tx.Get("/", h.List)
	tx.Post("/send-money", h.SendMoney)
	tx.Post("/cash-out", h.CashOut)
	tx.Post("/cash-in", h.CashIn)
	tx.Post("/approve", h.Approve)
}
