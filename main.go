package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/quizbuzz/exam-service/internal/auth"
	"github.com/quizbuzz/exam-service/internal/chat"
	"github.com/quizbuzz/exam-service/internal/clients"
	"github.com/quizbuzz/exam-service/internal/config"
	"github.com/quizbuzz/exam-service/internal/events"
	"github.com/quizbuzz/exam-service/internal/handlers"
	"github.com/quizbuzz/exam-service/internal/repositories/postgres"
	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
	"github.com/quizbuzz/exam-service/internal/validator"
	"github.com/quizbuzz/exam-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			log.Printf("Warning: failed to initialize Redis, caching disabled: %v", err)
		}
	}

	// Initialize repositories
	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	// Initialize validator and token manager
	v := validator.New()
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)

	// Event publisher: Kafka when brokers are configured, in-memory otherwise
	var eventPublisher events.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := events.NewKafkaEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, slogLogger)
		if err != nil {
			log.Fatalf("Failed to initialize Kafka publisher: %v", err)
		}
		eventPublisher = kafkaPublisher
	} else {
		log.Printf("Warning: KAFKA_BROKERS not set, events stay in memory")
		eventPublisher = events.NewMockEventPublisher(slogLogger)
	}

	// Optional integrations
	var llmClient *clients.LLMClient
	if cfg.OpenAI.APIKey != "" {
		llmClient = clients.NewLLMClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	var storageClient *clients.StorageClient
	if cfg.OSS.Bucket != "" {
		storageClient, err = clients.NewStorageClient(cfg.OSS)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
	}

	extractionClient := clients.NewExtractionClient(cfg.ExtractionServiceURL)
	retrievalClient := clients.NewRetrievalClient(cfg.RetrievalServiceURL)

	// In-process chat fan-out
	broker := chat.NewRoomBroker(slogLogger)

	// Initialize services
	serviceManager := services.NewServiceManager(services.Dependencies{
		DB:             db,
		Repo:           repoManager.GetRepository(),
		Logger:         slogLogger,
		Validator:      v,
		Tokens:         tokens,
		Broker:         broker,
		EventPublisher: eventPublisher,
		LLM:            llmClient,
		Extraction:     extractionClient,
		Retrieval:      retrievalClient,
		Storage:        storageClient,
	})
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(serviceManager, tokens, logger)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := serviceManager.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown services: %v", err)
	}

	if err := repoManager.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown repositories: %v", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}
