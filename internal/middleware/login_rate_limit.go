package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const loginRateWindow = time.Minute

// LoginRateLimit limits PIN-guessing by capping login attempts per identifier
// or IP within a minute, backed by Redis when available.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		var req struct {
			PhoneOrEmail string `json:"phone_or_email"`
		}
		_ = c.BodyParser(&req)
		key := strings.TrimSpace(req.PhoneOrEmail)
		if key == "" {
			key = c.IP()
		}
		cacheKey := "rl:login:" + key

		// INCR and the TTL travel in one pipeline; ExpireNX on every attempt
		// means a counter can never outlive its window, even if an earlier
		// TTL write was lost.
		pipe := cache.TxPipeline()
		incr := pipe.Incr(c.UserContext(), cacheKey)
		pipe.ExpireNX(c.UserContext(), cacheKey, loginRateWindow)
		if _, err := pipe.Exec(c.UserContext()); err != nil {
			return c.Next() // fail-open on cache errors
		}

		if incr.Val() > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
		}
		return c.Next()
	}
}
