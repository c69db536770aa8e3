package transfer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/swift-pay/swift_pay/internal/ledger"
)

var validate = validator.New()

// Handler exposes the transfer engine and query service over HTTP.
type Handler struct {
	engine  *Engine
	queries *QueryService
}

// NewHandler constructs a transfer handler.
func NewHandler(engine *Engine, queries *QueryService) *Handler {
	return &Handler{engine: engine, queries: queries}
}

type transferRequest struct {
	SenderPhone   string `json:"sender_phone" validate:"required,numeric"`
	ReceiverPhone string `json:"receiver_phone" validate:"required,numeric"`
	PIN           string `json:"pin" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
}

type approveRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,uuid4"`
}

type transactionResponse struct {
	ID            string     `json:"id"`
	SenderPhone   string     `json:"sender_phone"`
	ReceiverPhone string     `json:"receiver_phone"`
	Method        string     `json:"method"`
	Amount        int64      `json:"amount"`
	Fee           int64      `json:"fee"`
	Pending       bool       `json:"pending"`
	CreatedAt     time.Time  `json:"created_at"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
}

func renderTransaction(tx ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:            tx.ID,
		SenderPhone:   tx.SenderPhone,
		ReceiverPhone: tx.ReceiverPhone,
		Method:        string(tx.Method),
		Amount:        tx.Amount,
		Fee:           tx.Fee,
		Pending:       tx.Pending(),
		CreatedAt:     tx.CreatedAt,
		SettledAt:     tx.SettledAt,
	}
}

// SendMoney handles the immediate user-to-user transfer endpoint.
func (h *Handler) SendMoney(c *fiber.Ctx) error {
	return h.transfer(c, h.engine.SendMoney)
}

// CashOut records a withdrawal request awaiting agent approval.
func (h *Handler) CashOut(c *fiber.Ctx) error {
	return h.transfer(c, h.engine.CashOut)
}

// CashIn records a deposit request awaiting agent approval.
func (h *Handler) CashIn(c *fiber.Ctx) error {
	return h.transfer(c, h.engine.CashIn)
}

func (h *Handler) transfer(c *fiber.Ctx, op func(ctx context.Context, req Request) (ledger.Transaction, error)) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	// The sender must be the authenticated caller; the PIN alone is not
	// enough to move someone else's money.
	if phone, _ := c.Locals("phone").(string); phone != req.SenderPhone {
		return fiber.NewError(http.StatusForbidden, "sender phone does not match the authenticated account")
	}

	tx, err := op(c.UserContext(), Request{
		SenderPhone:   req.SenderPhone,
		ReceiverPhone: req.ReceiverPhone,
		PIN:           req.PIN,
		Amount:        req.Amount,
	})
	if err != nil {
		return rejectionError(err)
	}
	return c.Status(http.StatusCreated).JSON(renderTransaction(tx))
}

// Approve settles a pending cash-in or cash-out; only the receiving agent
// may call it.
func (h *Handler) Approve(c *fiber.Ctx) error {
	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	actor, _ := c.Locals("phone").(string)

	tx, err := h.engine.Approve(c.UserContext(), actor, req.TransactionID)
	if err != nil {
		return rejectionError(err)
	}
	return c.Status(http.StatusOK).JSON(renderTransaction(tx))
}

// List returns the caller's role-filtered transaction history.
func (h *Handler) List(c *fiber.Ctx) error {
	actor, _ := c.Locals("phone").(string)

	seq, err := h.queries.List(c.UserContext(), actor)
	if err != nil {
		return rejectionError(err)
	}

	out := make([]transactionResponse, 0)
	for tx := range seq {
		out = append(out, renderTransaction(tx))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

func rejectionError(err error) error {
	var r Rejection
	if !errors.As(err, &r) {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	switch r.Kind {
	case KindInvalidInput, KindInsufficientFunds:
		return fiber.NewError(http.StatusBadRequest, r.Message)
	case KindUnauthorized:
		return fiber.NewError(http.StatusUnauthorized, r.Message)
	case KindNotFound:
		return fiber.NewError(http.StatusNotFound, r.Message)
	case KindAlreadySettled, KindConflict:
		return fiber.NewError(http.StatusConflict, r.Message)
	case KindStorageUnavailable:
		return fiber.NewError(http.StatusServiceUnavailable, r.Message)
	default:
		return fiber.NewError(http.StatusInternalServerError, r.Message)
	}
}
