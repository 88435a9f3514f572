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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ronalsilva/waller-microservice/internal/auth"
	"github.com/ronalsilva/waller-microservice/internal/config"
	"github.com/ronalsilva/waller-microservice/internal/ledger"
	"github.com/ronalsilva/waller-microservice/internal/metrics"
	"github.com/ronalsilva/waller-microservice/internal/middleware"
	"github.com/ronalsilva/waller-microservice/internal/notification"
	"github.com/ronalsilva/waller-microservice/internal/resolver"
	"github.com/ronalsilva/waller-microservice/internal/users"
	"github.com/ronalsilva/waller-microservice/internal/wallet"
)

const loginAttemptsPerMinute = 5

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in development; Resolver is nil when remote identity resolution
// is disabled.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Notifier notification.Notifier
	Resolver *resolver.Resolver
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
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	var userRepo users.Repository
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		userRepo = users.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("no database configured, using in-memory storage")
		store = ledger.NewInMemory()
		userRepo = users.NewMemoryRepository()
	}

	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	userSvc := users.NewService(userRepo)
	authSvc := auth.NewService(d.Cfg)
	walletSvc := wallet.NewService(store, notifier, d.Metrics, d.Logger)

	app.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDKey).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// A typed nil *Resolver must not reach the gateway as a non-nil interface.
	var remote middleware.RemoteResolver
	if d.Resolver != nil {
		remote = d.Resolver
	}
	authenticate := middleware.Authenticate(authSvc, userSvc, remote, d.Logger)
	idempotent := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)

	RegisterAuthRoutes(app, auth.NewHandler(userSvc, authSvc), middleware.LoginRateLimit(d.Cache, loginAttemptsPerMinute), authenticate)
	RegisterUserRoutes(app, users.NewHandler(userSvc), wallet.NewHandler(walletSvc), authenticate)
	RegisterWalletRoutes(app, wallet.NewHandler(walletSvc), authenticate, idempotent)

	return nil
}
