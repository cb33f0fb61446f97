package routes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/casino-royal/cashier/internal/config"
	"github.com/casino-royal/cashier/internal/deposit"
	"github.com/casino-royal/cashier/internal/gateway"
	"github.com/casino-royal/cashier/internal/ledger"
	"github.com/casino-royal/cashier/internal/middleware"
	"github.com/casino-royal/cashier/internal/notification"
	"github.com/casino-royal/cashier/internal/wallet"
	"github.com/casino-royal/cashier/internal/webhook"
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
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewInMemory()
	}

	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}
	walletSvc := wallet.NewService(walletRepo, store)

	var gw gateway.Gateway
	if d.Cfg.GatewayBaseURL != "" {
		gw = gateway.NewHTTPGateway(d.Cfg.GatewayBaseURL, d.Cfg.GatewayAPIKey, d.Cfg.GatewayTimeout)
	} else if d.Cfg.IsDev() {
		gw = gateway.StaticGateway{}
	} else {
		return fmt.Errorf("GATEWAY_BASE_URL is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	depositSvc, err := deposit.NewService(context.Background(), store, walletSvc, gw, notifier, d.Logger, deposit.RetryPolicy{
		Attempts: d.Cfg.GatewayRetries,
		Backoff:  d.Cfg.GatewayBackoff,
	})
	if err != nil {
		return err
	}

	depositHandler := deposit.NewHandler(depositSvc)
	walletHandler := wallet.NewHandler(walletSvc)
	webhookHandler := webhook.NewHandler(depositSvc, webhook.NewHMACVerifier(d.Cfg.WebhookSecret), d.Logger)

	// Processor callbacks: no idempotency middleware here, redeliveries must
	// reach the completion engine.
	app.Post("/webhook/payment-completed", webhookHandler.PaymentCompleted)

	RegisterDevRoutes(app, d, depositHandler)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	if d.Cache != nil {
		api.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterDepositRoutes(api, depositHandler)
	RegisterWalletRoutes(api, walletHandler)

	return nil
}
