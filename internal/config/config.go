package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// MaxPhotoSize is the upload ceiling for task photos (10 MiB).
const MaxPhotoSize = 10 * 1024 * 1024

// Config holds all configuration for the application
type Config struct {
	BotToken     string
	BotUsername  string
	APIHost      string
	APIPort      string
	DatabaseURL  string
	WebAppURL    string
	PhotosDir    string
	MaxPhotoSize int64
	LogLevel     string
}

// Load loads configuration from environment variables. A .env file is read
// first when present; real environment variables take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BotUsername:  getEnvOrDefault("BOT_USERNAME", "imashaquestbot"),
		APIHost:      getEnvOrDefault("API_HOST", "0.0.0.0"),
		APIPort:      getEnvOrDefault("API_PORT", "8080"),
		WebAppURL:    getEnvOrDefault("WEB_APP_URL", "https://imasha.ru"),
		PhotosDir:    getEnvOrDefault("PHOTOS_DIR", "./uploads/photos"),
		MaxPhotoSize: MaxPhotoSize,
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
	}

	// PORT (set by most hosting platforms) overrides API_PORT
	if port := os.Getenv("PORT"); port != "" {
		cfg.APIPort = port
	}

	if cfg.BotToken = os.Getenv("BOT_TOKEN"); cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN environment variable is required")
	}

	if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return cfg, nil
}

// AllowedOrigins returns the CORS allow-list for the quest web client.
func (c *Config) AllowedOrigins() []string {
	return []string{c.WebAppURL, "http://localhost:3000", "https://imasha.ru"}
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
