package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/akoskissak/soa-team-5/internal/repository"
	"github.com/akoskissak/soa-team-5/internal/saga"
	"github.com/akoskissak/soa-team-5/internal/service"
	transportHTTP "github.com/akoskissak/soa-team-5/internal/transport/http"
	"github.com/akoskissak/soa-team-5/internal/transport/http/handler"
	transportKafka "github.com/akoskissak/soa-team-5/internal/transport/kafka"
	"github.com/akoskissak/soa-team-5/pkg/config"
	"github.com/akoskissak/soa-team-5/pkg/db"
	pkgKafka "github.com/akoskissak/soa-team-5/pkg/kafka"
	"github.com/akoskissak/soa-team-5/pkg/metrics"
	"github.com/akoskissak/soa-team-5/pkg/mylogger"
	outboxRepository "github.com/akoskissak/soa-team-5/pkg/outbox/repository"
	"github.com/akoskissak/soa-team-5/pkg/outbox/worker"
	"github.com/akoskissak/soa-team-5/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, "purchase-service")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	logger, err := config.NewLogger(config.LoggerConfig{
		Level: "Info",
		Env:   cfg.Env,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	sagaMetrics := metrics.NewSagaMetrics()

	cartRepo := repository.NewCartRepository(pool, logger)
	tokenRepo := repository.NewTokenRepository(pool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(pool, logger)

	kafkaProducer, err := pkgKafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	debitPublisher := transportKafka.NewDebitRequestPublisher(pool, outboxRepo, cfg.Saga.RequestTopic, logger)
	coordinator := saga.NewCoordinator(debitPublisher, tokenRepo, logger, sagaMetrics, cfg.Saga.ReplyTimeout)

	cartService := service.NewCartService(pool, logger, cartRepo)
	checkoutService := service.NewCheckoutService(pool, logger, cartRepo, tokenRepo, coordinator)
	checkoutService = service.NewCachedCheckoutService(checkoutService, redisClient, cfg.Redis.CacheTTL)

	replyConsumer := transportKafka.NewConsumer(coordinator, logger)
	go func() {
		if err := replyConsumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Saga.ReplyTopic); err != nil {
			mylogger.Error(ctx, logger, "Reply consumer stopped", zap.Error(err))
			stop()
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.HTTP.Timeout,
		IdleTimeout: cfg.HTTP.Timeout,
	})

	transportHTTP.RegisterRoutes(app, &transportHTTP.Handlers{
		Cart:     handler.NewCartHandler(cartService, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
	})

	go func() {
		mylogger.Info(ctx, logger, "HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			mylogger.Error(ctx, logger, "HTTP server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, exit := context.WithTimeout(context.Background(), time.Second*5)
	defer exit()

	mylogger.Info(shutdownCtx, logger, "Shutting down purchase service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down HTTP server", zap.Error(err))
	}

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close kafka producer", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close redis client", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}

	pool.Close()
}
