package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	LogLevel    string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Gemini      GeminiConfig
	RabbitMQ    RabbitMQConfig
	Anomaly     AnomalyConfig
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	MaxBodyBytes   int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	AutoMigrate bool
}

// GeminiConfig holds settings for the vision service
type GeminiConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	TimeoutSeconds    int
	RequestsPerSecond float64
}

// RabbitMQConfig holds settings for measure event publishing.
// An empty URL disables publishing.
type RabbitMQConfig struct {
	URL                 string
	EventsExchange      string
	UploadedRoutingKey  string
	ConfirmedRoutingKey string
}

// Enabled reports whether events should be published
func (c RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}

// AnomalyConfig holds reading plausibility settings
type AnomalyConfig struct {
	SpikeThreshold            float64
	MinDataPointsForDetection int
	HistoryLimit              int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "meter-reading-api"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 3000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			MaxBodyBytes:   int64(getEnvAsInt("HTTP_MAX_BODY_BYTES", 50<<20)),
			ReadTimeout:    time.Duration(getEnvAsInt("HTTP_READ_TIMEOUT_SECONDS", 30)) * time.Second,
			WriteTimeout:   time.Duration(getEnvAsInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)) * time.Second,
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			MaxConns:    getEnvAsInt("DATABASE_MAX_CONNS", 10),
			AutoMigrate: getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		Gemini: GeminiConfig{
			APIKey:            getEnv("GEMINI_API_KEY", ""),
			BaseURL:           getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Model:             getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
			TimeoutSeconds:    getEnvAsInt("GEMINI_TIMEOUT_SECONDS", 60),
			RequestsPerSecond: getEnvAsFloat("GEMINI_REQUESTS_PER_SECOND", 2),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                 getEnv("RABBITMQ_URL", ""),
			EventsExchange:      getEnv("RABBITMQ_EVENTS_EXCHANGE", "meter-reading.events.exchange"),
			UploadedRoutingKey:  getEnv("RABBITMQ_UPLOADED_ROUTING_KEY", "measure.uploaded"),
			ConfirmedRoutingKey: getEnv("RABBITMQ_CONFIRMED_ROUTING_KEY", "measure.confirmed"),
		},
		Anomaly: AnomalyConfig{
			SpikeThreshold:            getEnvAsFloat("ANOMALY_SPIKE_THRESHOLD", 3.0),
			MinDataPointsForDetection: getEnvAsInt("ANOMALY_MIN_DATA_POINTS", 3),
			HistoryLimit:              getEnvAsInt("ANOMALY_HISTORY_LIMIT", 12),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required but not set in environment variables")
	}

	return cfg, nil
}

// LoadForMigrations loads only what the migrate command needs
func LoadForMigrations() (*Config, error) {
	url := getEnv("DATABASE_URL", "")
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "meter-reading-api"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database:    DatabaseConfig{URL: url, AutoMigrate: true},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
