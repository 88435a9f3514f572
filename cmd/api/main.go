package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/ronalsilva/waller-microservice/internal/config"
	"github.com/ronalsilva/waller-microservice/internal/infra"
	"github.com/ronalsilva/waller-microservice/internal/logging"
	"github.com/ronalsilva/waller-microservice/internal/messaging"
	"github.com/ronalsilva/waller-microservice/internal/metrics"
	"github.com/ronalsilva/waller-microservice/internal/notification"
	"github.com/ronalsilva/waller-microservice/internal/resolver"
	"github.com/ronalsilva/waller-microservice/internal/routes"
	"github.com/ronalsilva/waller-microservice/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.AppName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	db, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	cache, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", slog.Any("error", err))
			}
		}()
	}

	deps := routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Metrics:  m,
		Gatherer: reg,
	}

	resolverDone := make(chan struct{})
	if cfg.RemoteIdentityEnabled() {
		producer, ident, err := startIdentity(ctx, cfg, m, logger, resolverDone)
		if err != nil {
			logger.Error("start identity resolver", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("close kafka producer", slog.Any("error", err))
			}
		}()
		deps.Resolver = ident
		deps.Notifier = messaging.NewEventNotifier(producer, cfg.Kafka.EventsTopic)
	} else {
		logger.Info("KAFKA_BROKERS not set, remote identity resolution disabled")
		deps.Notifier = notification.NewLoggerNotifier(logger)
		close(resolverDone)
	}

	srv, err := server.New(deps)
	if err != nil {
		logger.Error("build server", slog.Any("error", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()
	logger.Info("server listening", slog.String("addr", cfg.Address()))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	select {
	case <-resolverDone:
	case <-shutdownCtx.Done():
		logger.Warn("identity resolver did not stop before shutdown deadline")
	}

	logger.Info("server exited cleanly")
}

func connectPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		return nil, nil
	}
	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := infra.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func connectRedis(ctx context.Context, cfg config.Config, logger *slog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, idempotency and login rate limiting disabled")
		return nil, nil
	}
	return infra.NewRedisClient(ctx, cfg.RedisURL)
}

// startIdentity dials Kafka and runs the resolver's consume loop until ctx
// is cancelled, closing done once the loop has returned.
func startIdentity(ctx context.Context, cfg config.Config, m *metrics.Metrics, logger *slog.Logger, done chan<- struct{}) (*messaging.Producer, *resolver.Resolver, error) {
	saramaCfg, err := infra.NewSaramaConfig(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	producer, err := messaging.DialProducer(cfg.Kafka.Brokers, saramaCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	subscriber := messaging.NewSubscriber(cfg.Kafka.Brokers, cfg.Kafka.GroupID, saramaCfg, logger)

	ident := resolver.New(producer, subscriber, resolver.Options{
		RequestTopic:   cfg.Identity.RequestTopic,
		ResponseTopic:  cfg.Identity.ResponseTopic,
		LookupTimeout:  cfg.Identity.LookupTimeout,
		TokenTimeout:   cfg.Identity.TokenTimeout,
		ReconnectDelay: cfg.Kafka.ReconnectDelay,
	}, m, logger)

	go func() {
		defer close(done)
		if err := ident.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("identity resolver stopped", slog.Any("error", err))
		}
	}()
	logger.Info("identity resolver started", slog.String("group_id", subscriber.GroupID()))
	return producer, ident, nil
}
