package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DatabaseURL     string
	WebhookURL      string
	SagaJournalPath string
	Env             string

	IdempotencyTTL    time.Duration
	IdempotencySweep  time.Duration
	PaymentTTL        time.Duration
	PaymentReaperTick time.Duration
}

// LoadConfig reads .env file and returns a Config struct
func LoadConfig() *Config {
	// Try loading .env file (it might not exist in Production, which is fine)
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on System Env Variables")
	}

	return &Config{
		Port:            getEnv("PORT", "3000"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		WebhookURL:      getEnv("WEBHOOK_URL", ""),
		SagaJournalPath: getEnv("SAGA_JOURNAL_PATH", "saga-journal.db"),
		Env:             getEnv("ENV", "development"),

		IdempotencyTTL:    getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		IdempotencySweep:  getDuration("IDEMPOTENCY_SWEEP_INTERVAL", time.Hour),
		PaymentTTL:        getDuration("PAYMENT_TTL", 30*time.Minute),
		PaymentReaperTick: getDuration("PAYMENT_REAPER_INTERVAL", time.Minute),
	}
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration in env, using default", "key", key, "value", value)
		return fallback
	}
	return d
}
