// cmd/gateway/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notification-gateway/internal/admission"
	"notification-gateway/internal/api"
	"notification-gateway/internal/common/broker"
	"notification-gateway/internal/common/config"
	"notification-gateway/internal/common/database"
	"notification-gateway/internal/common/logger"
	"notification-gateway/internal/common/observability"
	"notification-gateway/internal/dispatch"
	"notification-gateway/internal/idempotency"
	"notification-gateway/internal/notification"
	"notification-gateway/internal/ratelimit"
	"notification-gateway/pkg/templates"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification gateway...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	// Postgres
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var connErr error
		pg, connErr = database.NewPostgres(cfg.Database.Postgres)
		if connErr != nil {
			return connErr
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return pg.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "postgres connect")
	if err != nil {
		zapLog.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pg.Close()

	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := notification.InitSchema(ctx, pg.GetDB()); err != nil {
			cancel()
			zapLog.Fatal("failed to initialize schema", zap.Error(err))
		}
		cancel()
	}

	// Redis
	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("failed to create redis client", zap.Error(err))
	}
	defer rdb.Close()
	err = retryWithBackoff(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return rdb.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "redis connect")
	if err != nil {
		zapLog.Fatal("failed to connect to redis", zap.Error(err))
	}

	// RabbitMQ
	var mq *broker.RabbitMQClient
	err = retryWithBackoff(func() error {
		var connErr error
		mq, connErr = broker.NewRabbitMQ(cfg.RabbitMQ)
		return connErr
	}, 5, 2*time.Second, zapLog, "rabbitmq connect")
	if err != nil {
		zapLog.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer mq.Close()

	// Template registry
	registry := templates.NewEmptyRegistry()
	if cfg.Templates.RegistryPath != "" {
		registry, err = templates.LoadRegistry(cfg.Templates.RegistryPath)
		if err != nil {
			zapLog.Fatal("failed to load template registry",
				zap.String("path", cfg.Templates.RegistryPath), zap.Error(err))
		}
	}

	// Components
	index := idempotency.NewIndex(
		rdb.GetClient(),
		time.Duration(cfg.Idempotency.RetentionSeconds)*time.Second,
		time.Duration(cfg.Idempotency.ReserveSeconds)*time.Second,
		log,
	)
	limiter := ratelimit.NewLimiter(
		rdb.GetClient(),
		cfg.RateLimit.Limit,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		log,
	)
	store := notification.NewStore(pg.GetDB(), log)
	publisher := dispatch.NewPublisher(mq.Channel(), cfg.RabbitMQ.Exchange, log)

	coordinator := admission.NewCoordinator(index, limiter, store, publisher, log)
	reporter := admission.NewReporter(store, log)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	checks := map[string]api.HealthCheck{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
		"rabbitmq": func(ctx context.Context) error {
			if !mq.Healthy() {
				return fmt.Errorf("rabbitmq connection closed")
			}
			return nil
		},
	}

	server := api.NewServer(cfg, coordinator, reporter, registry, checks, obs, log)

	// Metrics and pprof on the metrics port
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		zapLog.Info("metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			zapLog.Error("metrics server exited", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	zapLog.Info("api server listening", zap.String("addr", addr))
	if err := server.Run(ctx, addr, time.Duration(cfg.Server.ShutdownTimeout)*time.Second); err != nil {
		zapLog.Fatal("server exited with error", zap.Error(err))
	}

	zapLog.Info("notification gateway stopped")
}
