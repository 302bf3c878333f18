package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setDB(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_USER", "payments")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "payments")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setDB(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "3006", cfg.Port)
	assert.Equal(t, "simulated", cfg.Backend)
	assert.Equal(t, "usd", cfg.DefaultCurrency)
	assert.Equal(t, 600, cfg.RateLimitPerMinute)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadConfig_MissingDatabase(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "")
	t.Setenv("POSTGRES_USER", "")

	_, err := LoadConfig()
	assert.EqualError(t, err, "database config incomplete")
}

func TestLoadConfig_StripeNeedsKeys(t *testing.T) {
	setDB(t)
	t.Setenv("PAYMENT_BACKEND", "stripe")
	t.Setenv("STRIPE_API_KEY", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "STRIPE_API_KEY")

	t.Setenv("STRIPE_API_KEY", "sk_test_x")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "pm_card_visa", cfg.StripeMethod)
}

func TestLoadConfig_UnknownBackend(t *testing.T) {
	setDB(t)
	t.Setenv("PAYMENT_BACKEND", "paypal")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "unknown PAYMENT_BACKEND")
}

func TestLoadConfig_KafkaBrokers(t *testing.T) {
	setDB(t)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}
