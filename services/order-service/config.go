package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "github.com/Williethedeveloper/e-commerce-microservices/pkg/aws"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/database"
	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	IdentityServiceURL string
	CartServiceURL     string
	PaymentServiceURL  string

	// AuthMode is "remote" (ask the identity service) or "jwt" (verify
	// locally with JWTSecret).
	AuthMode  string
	JWTSecret string

	// OrderStore selects the ledger backend: postgres, mongo or memory.
	OrderStore string
	Postgres   database.PostgresConfig
	MongoURL   string
	MongoDB    string

	// RedisURL enables Idempotency-Key handling when set.
	RedisURL       string
	IdempotencyTTL time.Duration
	// IdempotencyClaimTTL bounds how long an attempt that never reached
	// payment keeps its key, e.g. after a crash.
	IdempotencyClaimTTL time.Duration

	PostPaymentAttempts int
	RetryBackoff        time.Duration

	AuthTimeout    time.Duration
	CartTimeout    time.Duration
	PaymentTimeout time.Duration
	LedgerTimeout  time.Duration
	RequestTimeout time.Duration

	BreakerFailures uint32
	BreakerCooldown time.Duration

	// EventsBackend is "sns", "kafka" or empty for none.
	EventsBackend    string
	OrderEventsTopic string
	KafkaBrokers     []string

	RateLimitPerMinute int
	AllowedOrigins     string
}

func LoadConfig() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Env:                getEnv("ENV", "development"),
		Port:               getEnv("PORT", "3005"),
		IdentityServiceURL: getEnv("IDENTITY_SERVICE_URL", "http://localhost:3001"),
		CartServiceURL:     getEnv("CART_SERVICE_URL", "http://localhost:3004"),
		PaymentServiceURL:  getEnv("PAYMENT_SERVICE_URL", "http://localhost:3006"),
		AuthMode:           strings.ToLower(getEnv("AUTH_MODE", "remote")),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		OrderStore:         strings.ToLower(getEnv("ORDER_STORE", "postgres")),
		Postgres: database.PostgresConfig{
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		MongoURL:         os.Getenv("MONGO_URL"),
		MongoDB:          getEnv("MONGO_DB", "orders"),
		RedisURL:         os.Getenv("REDIS_URL"),
		EventsBackend:    strings.ToLower(os.Getenv("EVENTS_BACKEND")),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		AllowedOrigins:   getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	durations := []struct {
		key      string
		fallback time.Duration
		dest     *time.Duration
	}{
		{"AUTH_TIMEOUT", 3 * time.Second, &cfg.AuthTimeout},
		{"CART_TIMEOUT", 5 * time.Second, &cfg.CartTimeout},
		{"PAYMENT_TIMEOUT", 10 * time.Second, &cfg.PaymentTimeout},
		{"LEDGER_TIMEOUT", 5 * time.Second, &cfg.LedgerTimeout},
		{"REQUEST_TIMEOUT", 30 * time.Second, &cfg.RequestTimeout},
		{"IDEMPOTENCY_TTL", 24 * time.Hour, &cfg.IdempotencyTTL},
		{"IDEMPOTENCY_CLAIM_TTL", 2 * time.Minute, &cfg.IdempotencyClaimTTL},
		{"POST_PAYMENT_RETRY_BACKOFF", 200 * time.Millisecond, &cfg.RetryBackoff},
		{"BREAKER_COOLDOWN", 30 * time.Second, &cfg.BreakerCooldown},
	}
	for _, d := range durations {
		if *d.dest, err = getDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	if cfg.PostPaymentAttempts, err = getInt("POST_PAYMENT_ATTEMPTS", 1); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	failures, err := getInt("BREAKER_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	if failures < 0 {
		return nil, fmt.Errorf("BREAKER_FAILURES must not be negative")
	}
	cfg.BreakerFailures = uint32(failures)

	if cfg.OrderStore == "postgres" && os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			sm := aws_pkg.NewSecretsClient(awsCfg)
			// Missing or malformed secrets leave the environment values in place.
			_ = sm.ApplySecret(context.Background(), "order/DB_CREDENTIALS", map[string]*string{
				"POSTGRES_USER":     &cfg.Postgres.User,
				"POSTGRES_PASSWORD": &cfg.Postgres.Password,
				"POSTGRES_DB":       &cfg.Postgres.DBName,
				"POSTGRES_HOST":     &cfg.Postgres.Host,
				"POSTGRES_PORT":     &cfg.Postgres.Port,
			})
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AuthMode {
	case "remote":
		if c.IdentityServiceURL == "" {
			return fmt.Errorf("IDENTITY_SERVICE_URL is required")
		}
	case "jwt":
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	switch c.OrderStore {
	case "postgres":
		p := c.Postgres
		if p.User == "" || p.Password == "" || p.DBName == "" || p.Host == "" {
			return fmt.Errorf("database config incomplete")
		}
	case "mongo":
		if c.MongoURL == "" {
			return fmt.Errorf("MONGO_URL is required when ORDER_STORE=mongo")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown ORDER_STORE %q", c.OrderStore)
	}

	switch c.EventsBackend {
	case "", "none", "sns":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_BACKEND=kafka")
		}
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.EventsBackend)
	}

	if c.CartServiceURL == "" || c.PaymentServiceURL == "" {
		return fmt.Errorf("CART_SERVICE_URL and PAYMENT_SERVICE_URL are required")
	}
	if c.PostPaymentAttempts < 1 {
		return fmt.Errorf("POST_PAYMENT_ATTEMPTS must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
