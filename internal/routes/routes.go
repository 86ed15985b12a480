package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/offline-pay/offline_pay/internal/auth"
	"github.com/offline-pay/offline_pay/internal/config"
	"github.com/offline-pay/offline_pay/internal/identity"
	"github.com/offline-pay/offline_pay/internal/ledger"
	"github.com/offline-pay/offline_pay/internal/middleware"
	"github.com/offline-pay/offline_pay/internal/notification"
	"github.com/offline-pay/offline_pay/internal/payments"
	"github.com/offline-pay/offline_pay/internal/txlog"
	"github.com/offline-pay/offline_pay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// AccessLog enables the plain text access log on stdout.
	AccessLog bool
}

// Setup configures middlewares and all application routes. Without a
// database the sandbox keeps accounts and the ledger in memory; without
// Redis it skips idempotent replay and login throttling.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.AccessLog {
		// [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}

	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}
	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}

	format := txlog.Formatter{Prefix: d.Cfg.CountryPrefix}
	walletSvc := wallet.NewService(walletRepo, ledgerBackend, d.Cfg.OpeningBalance)
	notifier := notification.NewLoggerNotifier(d.Logger)
	paymentSvc := payments.NewService(ledgerBackend, walletSvc, notifier, format)
	identitySvc := identity.NewService(identityRepo)
	issuer := auth.NewIssuer(d.Cfg.JWTSecret)

	authHandler := auth.NewHandler(identitySvc, issuer, walletSvc)
	paymentHandler := payments.NewHandler(paymentSvc)

	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.LocalRequestID).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	var rateLimiter fiber.Handler
	if d.Cache != nil {
		rateLimiter = middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttempts)
	}
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	jwtmw := middleware.JWTAuth(issuer)
	chain := []fiber.Handler{jwtmw}
	if d.Cache != nil {
		chain = append(chain, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterPaymentRoutes(api, paymentHandler, chain...)
	RegisterWalletMeRoute(api, jwtmw, walletSvc, identitySvc)

	return nil
}
