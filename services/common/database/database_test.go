package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresConfigDSNDefaults(t *testing.T) {
	dsn := PostgresConfig{Host: "db", User: "orders", Password: "pw", DBName: "orders"}.DSN()
	assert.Equal(t, "host=db user=orders password=pw dbname=orders port=5432 sslmode=disable TimeZone=UTC", dsn)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestConnectMongo_RequiresURI(t *testing.T) {
	_, _, err := ConnectMongo(context.Background(), "", "orders", 0)
	assert.Error(t, err)
}
