package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/swift-pay/swift_pay/internal/account"
	"github.com/swift-pay/swift_pay/internal/auth"
)

// JWTAuth validates bearer access tokens and loads the caller's account so
// downstream handlers get a verified phone and role in Locals.
func JWTAuth(tokens *auth.Service, accounts account.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		claims, err := tokens.VerifyAccess(tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		acct, err := accounts.FindByPhone(c.UserContext(), claims.Phone)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "account not found")
		}

		c.Locals("phone", acct.Phone)
		c.Locals("role", string(acct.Role))
		return c.Next()
	}
}

// RequireAdmin restricts a route to admin accounts. It must run after JWTAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if role, _ := c.Locals("role").(string); role != string(account.RoleAdmin) {
			return fiber.NewError(http.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}
