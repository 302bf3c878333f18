package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	aws_pkg "github.com/Williethedeveloper/e-commerce-microservices/pkg/aws"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/database"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     string
	Postgres database.PostgresConfig

	// Backend is "simulated" (every charge completes) or "stripe".
	Backend          string
	DefaultCurrency  string
	StripeSecretKey  string
	StripeWebhookKey string
	StripeMethod     string
	StripeAPIURL     string

	KafkaBrokers       []string
	PaymentEventsTopic string

	RateLimitPerMinute int
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "3006"),
		Postgres: database.PostgresConfig{
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		Backend:            strings.ToLower(getEnv("PAYMENT_BACKEND", "simulated")),
		DefaultCurrency:    strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
		StripeSecretKey:    os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeMethod:       getEnv("STRIPE_PAYMENT_METHOD", "pm_card_visa"),
		StripeAPIURL:       os.Getenv("STRIPE_API_URL"),
		PaymentEventsTopic: getEnv("PAYMENT_EVENTS_TOPIC", "payment-events"),
	}
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	var err error
	if cfg.RateLimitPerMinute, err = strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "600")); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE: %w", err)
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			sm := aws_pkg.NewSecretsClient(awsCfg)
			_ = sm.ApplySecret(context.Background(), "payment/DB_CREDENTIALS", map[string]*string{
				"POSTGRES_USER":     &cfg.Postgres.User,
				"POSTGRES_PASSWORD": &cfg.Postgres.Password,
				"POSTGRES_DB":       &cfg.Postgres.DBName,
				"POSTGRES_HOST":     &cfg.Postgres.Host,
				"POSTGRES_PORT":     &cfg.Postgres.Port,
			})
			_ = sm.ApplySecret(context.Background(), "payment/STRIPE", map[string]*string{
				"STRIPE_API_KEY":        &cfg.StripeSecretKey,
				"STRIPE_WEBHOOK_SECRET": &cfg.StripeWebhookKey,
			})
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	p := c.Postgres
	if p.User == "" || p.Password == "" || p.DBName == "" || p.Host == "" {
		return fmt.Errorf("database config incomplete")
	}
	switch c.Backend {
	case "simulated":
	case "stripe":
		if c.StripeSecretKey == "" || c.StripeWebhookKey == "" {
			return fmt.Errorf("STRIPE_API_KEY and STRIPE_WEBHOOK_SECRET are required when PAYMENT_BACKEND=stripe")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_BACKEND %q", c.Backend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
