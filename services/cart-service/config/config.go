package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     string
	RedisURL string
	CartTTL  time.Duration

	CatalogServiceURL string
	CatalogTimeout    time.Duration

	AuthMode           string
	IdentityServiceURL string
	JWTSecret          string
	AuthTimeout        time.Duration

	// EventsBackend picks where order events are read for cart
	// reconciliation: "kafka", "sns" (an SQS queue subscribed to the topic)
	// or empty for off. Left unset it follows KAFKA_BROKERS.
	EventsBackend    string
	KafkaBrokers     []string
	OrderEventsTopic string
	KafkaGroupID     string
	OrderEventsQueue string

	RateLimitPerMinute int
	AllowedOrigins     string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                getEnv("ENV", "development"),
		Port:               getEnv("PORT", "3004"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		CatalogServiceURL:  getEnv("PRODUCT_SERVICE_URL", "http://localhost:3003"),
		AuthMode:           strings.ToLower(getEnv("AUTH_MODE", "remote")),
		IdentityServiceURL: getEnv("IDENTITY_SERVICE_URL", "http://localhost:3001"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		OrderEventsTopic:   getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "cart-reconciler"),
		EventsBackend:      strings.ToLower(os.Getenv("EVENTS_BACKEND")),
		OrderEventsQueue:   os.Getenv("ORDER_EVENTS_QUEUE_URL"),
		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
	}
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	if cfg.EventsBackend == "" && len(cfg.KafkaBrokers) > 0 {
		cfg.EventsBackend = "kafka"
	}

	var err error
	if cfg.CartTTL, err = getDuration("CART_TTL", 7*24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.CatalogTimeout, err = getDuration("CATALOG_TIMEOUT", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.AuthTimeout, err = getDuration("AUTH_TIMEOUT", 3*time.Second); err != nil {
		return cfg, err
	}
	if cfg.RateLimitPerMinute, err = strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "120")); err != nil {
		return cfg, fmt.Errorf("RATE_LIMIT_PER_MINUTE: %w", err)
	}

	if cfg.AuthMode == "jwt" && cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
	}
	if cfg.AuthMode != "jwt" && cfg.AuthMode != "remote" {
		return cfg, fmt.Errorf("unknown AUTH_MODE %q", cfg.AuthMode)
	}
	switch cfg.EventsBackend {
	case "":
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return cfg, fmt.Errorf("KAFKA_BROKERS is required when EVENTS_BACKEND=kafka")
		}
	case "sns":
		if cfg.OrderEventsQueue == "" {
			return cfg, fmt.Errorf("ORDER_EVENTS_QUEUE_URL is required when EVENTS_BACKEND=sns")
		}
	default:
		return cfg, fmt.Errorf("unknown EVENTS_BACKEND %q", cfg.EventsBackend)
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
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
