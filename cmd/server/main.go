package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bizpadi-api/config"
	"bizpadi-api/internal/api"
	"bizpadi-api/internal/broker"
	"bizpadi-api/internal/redisclient"
	"bizpadi-api/internal/service"
	"bizpadi-api/internal/store"
	"bizpadi-api/internal/util"
	"bizpadi-api/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting bizpadi api", zap.String("env", cfg.Server.Env))

	if cfg.Auth.AccessSecret == "" {
		logger.Fatal("ACCESS_SECRET_KEY must be set")
	}

	tp, err := util.InitTracer("bizpadi-api", cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	migrateCancel()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	var publisher service.EventPublisher
	if cfg.Kafka.PublishEnabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicSales))
	}

	saleService := service.NewSaleService(db, publisher, redisClient, redisClient, service.LedgerConfig{
		DefaultPageLimit: cfg.Business.DefaultPageLimit,
		MaxPageLimit:     cfg.Business.MaxPageLimit,
		RetryOnConflict:  cfg.Business.RetryOnConflict,
		IdempotencyTTL:   time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second,
	})
	productService := service.NewProductService(db, publisher)
	clientService := service.NewClientService(db)
	projector := service.NewSummaryProjector(redisClient)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var summaryWorker *worker.SummaryWorker
	if cfg.Kafka.PublishEnabled {
		summaryConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales, cfg.Kafka.ConsumerGroup)
		summaryWorker = worker.NewSummaryWorker(summaryConsumer, projector)
		go func() {
			if err := summaryWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Summary worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(saleService, productService, clientService, cfg.Auth.AccessSecret, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if summaryWorker != nil {
		summaryWorker.Stop()
	}

	logger.Info("Server exited")
}
