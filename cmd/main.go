/**
 * @description
 * This is the main entry point for the booking web service. It loads the
 * configuration, builds the backend clients and the optional Redis, Postgres
 * and RabbitMQ integrations, wires the cancellation service and the HTTP
 * router, and runs the server until SIGINT or SIGTERM.
 *
 * @dependencies
 * - github.com/joho/godotenv: .env loading for local development.
 * - github.com/jackc/pgx/v5: audit trail storage.
 * - github.com/redis/go-redis/v9: shared attempt counters.
 * - golang.org/x/sync/errgroup: server and shutdown lifecycle.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/skyconnect/booking-web/internal/api"
	"github.com/skyconnect/booking-web/internal/app"
	"github.com/skyconnect/booking-web/internal/config"
	"github.com/skyconnect/booking-web/internal/logging"
	"github.com/skyconnect/booking-web/internal/store"
	"github.com/skyconnect/booking-web/pkg/authclient"
	"github.com/skyconnect/booking-web/pkg/cancelclient"
	rmrabbit "github.com/skyconnect/booking-web/pkg/rabbitmq"
	"github.com/skyconnect/booking-web/pkg/ticketclient"
)

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logrus.WithField("component", "bootstrap").WithError(err).Fatal("config load failed")
	}
	logging.Init(cfg.LogLevel)
	logger := logrus.WithField("component", "bootstrap")

	if cfg.TicketServiceURL == "" || cfg.CancellationServiceURL == "" {
		logger.WithFields(logrus.Fields{
			"ticket_service_url_set":       cfg.TicketServiceURL != "",
			"cancellation_service_url_set": cfg.CancellationServiceURL != "",
		}).Fatal("booking service urls must be configured")
	}
	logger.WithFields(logrus.Fields{"port": cfg.ServerPort, "timezone": cfg.Location().String()}).Info("starting booking-web")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout := cfg.HTTPClientTimeout()
	tickets := ticketclient.NewClient(cfg.TicketServiceURL, timeout)
	cancellations := cancelclient.NewClient(cfg.CancellationServiceURL, timeout)

	var auth api.Authenticator
	if cfg.AuthServiceURL == "" {
		logger.Warn("auth service url missing; login proxy disabled")
	} else {
		auth = authclient.NewClient(cfg.AuthServiceURL, timeout)
	}

	opts := app.Options{
		Location:        cfg.Location(),
		ViewTTL:         cfg.ViewTTL(),
		OTPRequestLimit: cfg.OTPRequestLimitPerHour,
		OTPVerifyLimit:  cfg.OTPVerifyLimitPerHour,
	}

	if redisClient := connectRedis(ctx, cfg, logger); redisClient != nil {
		defer redisClient.Close()
		opts.AttemptLimiter = app.NewRedisAttemptLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	if dbpool := connectDatabase(ctx, cfg, logger); dbpool != nil {
		defer dbpool.Close()
		opts.Audit = store.NewPostgresRepository(dbpool)
	}

	var publisher rmrabbit.Publisher = &rmrabbit.EventProducerFallback{}
	if cfg.RabbitMQURL == "" {
		logger.Warn("rabbitmq url missing; cancellation events disabled")
	} else if producer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL, cfg.BookingEventsExchange); err != nil {
		logger.WithError(err).Warn("rabbitmq producer unavailable; using fallback")
	} else {
		publisher = producer
		logger.Info("rabbitmq producer connected")
	}
	defer publisher.Close()
	opts.EventPublisher = publisher

	service := app.NewService(tickets, cancellations, opts)

	sweeper := app.NewSweeper(service, cfg.ViewSweepSchedule)
	if err := sweeper.Start(); err != nil {
		logger.WithError(err).Fatal("view sweeper start failed")
	}

	handlers := api.NewHandlers(service, auth)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           api.Routes(handlers, cfg.AllowedOrigins()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithFields(logrus.Fields{"component": "http", "addr": server.Addr}).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.WithField("component", "http").Info("shutdown started")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		<-sweeper.Stop().Done()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.WithField("component", "http").WithError(err).Error("server stopped unexpectedly")
		os.Exit(1)
	}
	logrus.WithField("component", "http").Info("shutdown complete")
}

// connectRedis returns nil when no attempt limit is configured or Redis is
// unreachable; the limiter is then disabled.
func connectRedis(ctx context.Context, cfg config.Config, logger *logrus.Entry) *redis.Client {
	if cfg.OTPRequestLimitPerHour <= 0 && cfg.OTPVerifyLimitPerHour <= 0 {
		return nil
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		logger.Warn("redis url missing; otp attempt limiting disabled")
		return nil
	}

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Warn("redis url parse failed; otp attempt limiting disabled")
		return nil
	}
	client := redis.NewClient(redisOptions)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).Warn("redis ping failed; otp attempt limiting disabled")
		client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}

// connectDatabase returns nil when DATABASE_URL is empty or the audit schema
// cannot be prepared; audit rows are then discarded.
func connectDatabase(ctx context.Context, cfg config.Config, logger *logrus.Entry) *pgxpool.Pool {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Info("database url not set; audit trail disabled")
		return nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Warn("database url parse failed; audit trail disabled")
		return nil
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.WithError(err).Warn("database connection failed; audit trail disabled")
		return nil
	}

	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.NewPostgresRepository(dbpool).EnsureSchema(schemaCtx); err != nil {
		logger.WithError(err).Warn("audit schema setup failed; audit trail disabled")
		dbpool.Close()
		return nil
	}
	logger.Info("database connected")
	return dbpool
}
