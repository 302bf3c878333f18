package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	cartdb "github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/database"
	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeleter struct {
	mu    sync.Mutex
	calls []string
	at    []time.Time
	// failures makes the next n calls fail.
	failures int
}

func (f *fakeDeleter) DeleteIfUnchangedSince(_ context.Context, userID string, t time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	f.at = append(f.at, t)
	if f.failures > 0 {
		f.failures--
		return false, errors.New("redis down")
	}
	return true, nil
}

func (f *fakeDeleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func encode(t *testing.T, evt models.OrderEvent) []byte {
	t.Helper()
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return data
}

func TestReconciler_HandleEvent(t *testing.T) {
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	published := created.Add(3 * time.Second)
	carts := &fakeDeleter{}
	r := NewReconciler(carts)
	ctx := context.Background()

	require.NoError(t, r.HandleEvent(ctx, encode(t, models.OrderEvent{Type: "order.confirmed", UserID: "u1"})))
	require.NoError(t, r.HandleEvent(ctx, []byte("not json")))
	require.NoError(t, r.HandleEvent(ctx, encode(t, models.OrderEvent{
		Type: EventCartClearFailed, UserID: "u2", OrderCreatedAt: created, Timestamp: published,
	})))

	assert.Equal(t, []string{"u2"}, carts.calls)
	assert.True(t, carts.at[0].Equal(created), "cut off at the order time, not the publish time")

	carts.failures = 1
	assert.Error(t, r.HandleEvent(ctx, encode(t, models.OrderEvent{Type: EventCartClearFailed, UserID: "u3"})))
}

func TestReconciler_FallsBackToPublishTime(t *testing.T) {
	published := time.Date(2026, 5, 1, 10, 0, 3, 0, time.UTC)
	carts := &fakeDeleter{}

	require.NoError(t, NewReconciler(carts).HandleEvent(context.Background(), encode(t, models.OrderEvent{
		Type: EventCartClearFailed, UserID: "u1", Timestamp: published,
	})))
	require.Len(t, carts.at, 1)
	assert.True(t, carts.at[0].Equal(published))
}

func newCartRepo(t *testing.T) *cartdb.CartRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cartdb.NewCartRepository(client, time.Hour)
}

func addItem(t *testing.T, repo *cartdb.CartRepository, productID string) {
	t.Helper()
	_, err := repo.Update(context.Background(), "u1", func(c *models.Cart) error {
		c.Add(productID, 1, decimal.NewFromInt(5))
		return nil
	})
	require.NoError(t, err)
}

// The user adds an item after the order was recorded but before the event
// went out. That cart is newer than the order and must survive.
func TestReconciler_KeepsCartEditedBeforePublish(t *testing.T) {
	repo := newCartRepo(t)
	ctx := context.Background()

	addItem(t, repo, "p1")
	orderCreated := time.Now().UTC()
	time.Sleep(10 * time.Millisecond)
	addItem(t, repo, "p2")
	time.Sleep(10 * time.Millisecond)
	published := time.Now().UTC()

	err := NewReconciler(repo).HandleEvent(ctx, encode(t, models.OrderEvent{
		Type: EventCartClearFailed, UserID: "u1", OrderID: "o-1",
		OrderCreatedAt: orderCreated, Timestamp: published,
	}))
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, cart)
	assert.Equal(t, 1, cart.Quantity("p2"))
}

func TestReconciler_ClearsCartUntouchedSinceOrder(t *testing.T) {
	repo := newCartRepo(t)
	ctx := context.Background()

	addItem(t, repo, "p1")
	time.Sleep(10 * time.Millisecond)
	orderCreated := time.Now().UTC()

	err := NewReconciler(repo).HandleEvent(ctx, encode(t, models.OrderEvent{
		Type: EventCartClearFailed, UserID: "u1", OrderCreatedAt: orderCreated, Timestamp: orderCreated.Add(time.Second),
	}))
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, cart)
}
