package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    slog.Level

	// Database
	DatabaseURL string

	// Redis, optional; the cache degrades gracefully when unset
	RedisURL string

	// Auth
	JWT JWTConfig

	// Question generation
	OpenAI OpenAIConfig

	// Ingestion pipeline
	ExtractionServiceURL string
	RetrievalServiceURL  string

	// Object storage
	OSS OSSConfig

	// Event publishing, optional
	Kafka KafkaConfig
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string

	// UploadURLExpiry bounds how long a presigned PUT stays valid.
	UploadURLExpiry time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoadConfig reads configuration from the environment, loading .env first if
// present
func LoadConfig() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			TTL:    getEnvDuration("JWT_TTL", 24*time.Hour),
		},

		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},

		ExtractionServiceURL: os.Getenv("EXTRACTION_SERVICE_URL"),
		RetrievalServiceURL:  os.Getenv("RETRIEVAL_SERVICE_URL"),

		OSS: OSSConfig{
			Endpoint:        os.Getenv("OSS_ENDPOINT"),
			AccessKeyID:     os.Getenv("OSS_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("OSS_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("OSS_BUCKET"),
			UploadURLExpiry: getEnvDuration("OSS_UPLOAD_URL_EXPIRY", 5*time.Minute),
		},

		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "exam-events"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare numbers are treated as seconds.
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
