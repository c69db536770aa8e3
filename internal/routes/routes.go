package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/swift-pay/swift_pay/internal/account"
	"github.com/swift-pay/swift_pay/internal/auth"
	"github.com/swift-pay/swift_pay/internal/config"
	"github.com/swift-pay/swift_pay/internal/ledger"
	"github.com/swift-pay/swift_pay/internal/metrics"
	"github.com/swift-pay/swift_pay/internal/middleware"
	"github.com/swift-pay/swift_pay/internal/notification"
	"github.com/swift-pay/swift_pay/internal/transfer"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// In-memory fallbacks are a dev-only convenience.
	if !d.Cfg.Dev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	var accountRepo account.Repository
	var ledgerRepo ledger.Repository
	if d.DB != nil {
		accountRepo = account.NewPostgresRepository(d.DB)
		ledgerRepo = ledger.NewPostgresRepository(d.DB)
	} else {
		accountRepo = account.NewMemoryRepository()
		ledgerRepo = ledger.NewInMemory()
	}

	accountSvc := account.NewService(accountRepo)
	tokenSvc := auth.NewService(d.Cfg, accountRepo)
	notifier := notification.NewLoggerNotifier(d.Logger)
	engine := transfer.NewEngine(accountRepo, ledgerRepo, notifier, d.Logger,
		transfer.WithStoreTimeout(d.Cfg.StoreTimeout))
	queries := transfer.NewQueryService(accountRepo, ledgerRepo, d.Logger)

	accountHandler := account.NewHandler(accountSvc)
	authHandler := auth.NewHandler(accountSvc, tokenSvc)
	transferHandler := transfer.NewHandler(engine, queries)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	jwtmw := middleware.JWTAuth(tokenSvc, accountRepo)
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)

	// Idempotency sits behind auth so replay keys are scoped per phone.
	idem := passthrough
	if d.Cache != nil {
		idem = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}

	RegisterAuthRoutes(api, authHandler, rateLimiter, jwtmw)
	RegisterAccountRoutes(api, accountHandler, jwtmw)
	RegisterTransactionRoutes(api, transferHandler, jwtmw, idem)

	return nil
}

func passthrough(c *fiber.Ctx) error {
	return c.Next()
}
