package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "swiftpay:idem:"
	inProgressMarker     = "__in_progress__"
	idempotencyOpTimeout = 2 * time.Second
)

type storedResponse struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type"`
}

// Idempotency lets clients retry money-movement requests safely. Unsafe
// requests carrying an Idempotency-Key header are executed once; replays
// within the TTL get the stored response back. The key is scoped to the
// authenticated phone, so two accounts reusing the same key never collide.
// Requests without the header pass through untouched.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return c.Next()
		}

		cacheKey := idempotencyPrefix + key
		if phone, _ := c.Locals("phone").(string); phone != "" {
			cacheKey = idempotencyPrefix + phone + ":" + key
		}

		ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
		defer cancel()

		cached, err := cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil && cached == inProgressMarker:
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		case err == nil:
			var stored storedResponse
			if err := json.Unmarshal([]byte(cached), &stored); err != nil {
				logger.Warn("decode stored idempotent response", slog.String("key", key), slog.Any("error", err))
				return fiber.NewError(fiber.StatusConflict, "duplicate request")
			}
			if stored.ContentType != "" {
				c.Set(fiber.HeaderContentType, stored.ContentType)
			}
			c.Set(idempotencyKeyHeader, key)
			return c.Status(stored.Status).SendString(stored.Body)
		case err != redis.Nil:
			logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency store failure")
		}

		if err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Err(); err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency store failure")
		}

		release := func() {
			relCtx, relCancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
			defer relCancel()
			cache.Del(relCtx, cacheKey)
		}

		if err := c.Next(); err != nil {
			release()
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			// Transient failures must stay retryable under the same key.
			release()
			return nil
		}

		stored := storedResponse{
			Status:      status,
			Body:        string(c.Response().Body()),
			ContentType: string(c.Response().Header.ContentType()),
		}
		payload, err := json.Marshal(stored)
		if err != nil {
			logger.Error("encode idempotent response", slog.String("key", key), slog.Any("error", err))
			release()
			return nil
		}

		persistCtx, persistCancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			logger.Error("persist idempotent response", slog.String("key", key), slog.Any("error", err))
			release()
		}

		return nil
	}
}
