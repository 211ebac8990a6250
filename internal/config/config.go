// Package config loads runtime configuration once at startup from the
// environment (and an optional .env file in development), mirroring the
// getEnv/getEnvInt/getEnvBool helpers this codebase has always used instead
// of reaching for a config framework.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host string
	Port int

	DatabaseHost     string
	DatabasePort     int
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseSSLMode  string

	RedisAddr string

	KafkaBrokers    []string
	KafkaTopic      string
	KafkaDLQTopic   string
	QueueBaseURL    string
	QueueSigningKey string

	JWTSigningKey string

	HubRedisFanout       bool
	SMSDrainQueuedOnRegister bool

	QuotaResetDay          int
	RenewalReminderDays    int
	RenewalGracePeriodDays int

	WebhookTimeout  time.Duration
	ProviderTimeout time.Duration
}

// Load reads .env (if present, ignored if absent) then the process
// environment, applying the same defaults the reference deployment ships
// with.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnvInt("PORT", 8080),

		DatabaseHost:     getEnv("DATABASE_HOST", "localhost"),
		DatabasePort:     getEnvInt("DATABASE_PORT", 5432),
		DatabaseName:     getEnv("DATABASE_NAME", "smsgateway"),
		DatabaseUser:     getEnv("DATABASE_USER", "smsgateway"),
		DatabasePassword: getEnv("DATABASE_PASSWORD", ""),
		DatabaseSSLMode:  getEnv("DATABASE_SSLMODE", "disable"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		KafkaBrokers:    []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
		KafkaTopic:      getEnv("KAFKA_TOPIC", "smsgateway.jobs"),
		KafkaDLQTopic:   getEnv("KAFKA_DLQ_TOPIC", "smsgateway.jobs.dlq"),
		QueueBaseURL:    getEnv("QUEUE_CALLBACK_BASE_URL", "http://localhost:8080"),
		QueueSigningKey: getEnv("QUEUE_SIGNING_KEY", ""),

		JWTSigningKey: getEnv("JWT_SIGNING_KEY", ""),

		HubRedisFanout:           getEnvBool("HUB_REDIS_FANOUT", false),
		SMSDrainQueuedOnRegister: getEnvBool("SMS_DRAIN_QUEUED_ON_REGISTER", false),

		QuotaResetDay:          getEnvInt("QUOTA_RESET_DAY", 1),
		RenewalReminderDays:    getEnvInt("RENEWAL_REMINDER_DAYS", 3),
		RenewalGracePeriodDays: getEnvInt("RENEWAL_GRACE_PERIOD_DAYS", 7),

		WebhookTimeout:  time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 10)) * time.Second,
		ProviderTimeout: time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 30)) * time.Second,
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("JWT_SIGNING_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
