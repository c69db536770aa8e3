package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// Handler exposes account registration, profile and admin endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an account handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,numeric"`
	PIN   string `json:"pin" validate:"required,len=5,numeric"`
	Role  string `json:"role" validate:"required,oneof=User Agent Admin"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=Active Blocked"`
}

type approvalRequest struct {
	Approved bool `json:"approved"`
}

type changePINRequest struct {
	OldPIN string `json:"old_pin" validate:"required"`
	NewPIN string `json:"new_pin" validate:"required,len=5,numeric"`
}

type accountResponse struct {
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Approved  bool      `json:"approved"`
	Status    string    `json:"status"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

func renderAccount(acct Account) accountResponse {
	return accountResponse{
		Phone:     acct.Phone,
		Name:      acct.Name,
		Email:     acct.Email,
		Role:      string(acct.Role),
		Approved:  acct.Approved,
		Status:    string(acct.Status),
		Balance:   acct.Balance,
		CreatedAt: acct.CreatedAt,
	}
}

// Register opens a new account. The account stays unusable until an admin
// approves it.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	acct, err := h.service.Register(c.UserContext(), RegisterInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		PIN:   req.PIN,
		Role:  Role(req.Role),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return fiber.NewError(http.StatusConflict, "account with this phone or email already exists")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(renderAccount(acct))
}

// Me returns the authenticated caller's account.
func (h *Handler) Me(c *fiber.Ctx) error {
	phone, _ := c.Locals("phone").(string)
	acct, err := h.service.Get(c.UserContext(), phone)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "account not found")
	}
	return c.JSON(renderAccount(acct))
}

// List returns every account; admin only.
func (h *Handler) List(c *fiber.Ctx) error {
	accts, err := h.service.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]accountResponse, 0, len(accts))
	for _, acct := range accts {
		out = append(out, renderAccount(acct))
	}
	return c.JSON(fiber.Map{"accounts": out})
}

// Approve records the admin approval decision for the account in the path.
func (h *Handler) Approve(c *fiber.Ctx) error {
	var req approvalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Approve(c.UserContext(), c.Params("phone"), req.Approved); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"phone": c.Params("phone"), "approved": req.Approved})
}

// SetStatus blocks or reactivates the account in the path.
func (h *Handler) SetStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.SetStatus(c.UserContext(), c.Params("phone"), Status(req.Status)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"phone": c.Params("phone"), "status": req.Status})
}

// ChangePIN rotates the caller's PIN after verifying the old one.
func (h *Handler) ChangePIN(c *fiber.Ctx) error {
	var req changePINRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	phone, _ := c.Locals("phone").(string)
	if err := h.service.ChangePIN(c.UserContext(), phone, req.OldPIN, req.NewPIN); err != nil {
		if errors.Is(err, ErrInvalidPIN) {
			return fiber.NewError(http.StatusBadRequest, "invalid old PIN")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"message": "PIN changed successfully"})
}
