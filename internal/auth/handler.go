package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/swift-pay/swift_pay/internal/account"
)

// Handler exposes login, refresh and logout endpoints.
type Handler struct {
	accounts *account.Service
	tokens   *Service
}

// NewHandler constructs an auth handler.
func NewHandler(accounts *account.Service, tokens *Service) *Handler {
	return &Handler{accounts: accounts, tokens: tokens}
}

type loginRequest struct {
	PhoneOrEmail string `json:"phone_or_email"`
	PIN          string `json:"pin"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login verifies the PIN and issues a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.PhoneOrEmail == "" || req.PIN == "" {
		return fiber.NewError(http.StatusBadRequest, "phone_or_email and pin are required")
	}

	acct, err := h.accounts.Authenticate(c.UserContext(), req.PhoneOrEmail, req.PIN)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "account does not exist")
		case errors.Is(err, account.ErrNotAllowed):
			return fiber.NewError(http.StatusUnauthorized, "account is not approved or is blocked by admin")
		default:
			return fiber.NewError(http.StatusUnauthorized, "invalid credentials")
		}
	}

	pair, err := h.tokens.Login(c.UserContext(), acct)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"phone":         acct.Phone,
		"role":          string(acct.Role),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	})
}

// Refresh rotates a refresh token into a new token pair.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.RefreshToken == "" {
		return fiber.NewError(http.StatusUnauthorized, "refresh token is required")
	}

	pair, err := h.tokens.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.JSON(pair)
}

// Logout drops the stored refresh token for the authenticated account.
func (h *Handler) Logout(c *fiber.Ctx) error {
	phone, _ := c.Locals("phone").(string)
	if phone == "" {
		return fiber.NewError(http.StatusUnauthorized, "not authenticated")
	}
	if err := h.tokens.Logout(c.UserContext(), phone); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"message": "logged out"})
}
