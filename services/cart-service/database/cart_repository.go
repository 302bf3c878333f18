package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/models"
	"github.com/redis/go-redis/v9"
)

// ErrConflict is returned when a cart kept changing under an update.
var ErrConflict = errors.New("cart modified concurrently")

const maxUpdateAttempts = 5

type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *CartRepository) getKey(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

// GetCart returns the stored cart or nil when the user has none.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	return r.read(ctx, r.client, r.getKey(userID))
}

func (r *CartRepository) read(ctx context.Context, c redis.Cmdable, key string) (*models.Cart, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

// Update applies fn to the user's cart under WATCH so concurrent adds are not
// lost. fn receives an empty cart when none exists.
func (r *CartRepository) Update(ctx context.Context, userID string, fn func(*models.Cart) error) (*models.Cart, error) {
	key := r.getKey(userID)
	var result *models.Cart

	txf := func(tx *redis.Tx) error {
		cart, err := r.read(ctx, tx, key)
		if err != nil {
			return err
		}
		if cart == nil {
			cart = models.NewCart(userID)
		}
		if err := fn(cart); err != nil {
			return err
		}
		cart.UpdatedAt = r.now().UTC()
		data, err := json.Marshal(cart)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		if err == nil {
			result = cart
		}
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, ErrConflict
}

func (r *CartRepository) DeleteCart(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.getKey(userID)).Err()
}

// DeleteIfUnchangedSince removes the cart only if it was last written at or
// before t. It reports whether a cart was deleted.
func (r *CartRepository) DeleteIfUnchangedSince(ctx context.Context, userID string, t time.Time) (bool, error) {
	key := r.getKey(userID)
	deleted := false

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		cart, err := r.read(ctx, tx, key)
		if err != nil || cart == nil {
			return err
		}
		if cart.UpdatedAt.After(t) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		deleted = err == nil
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// someone wrote to the cart meanwhile, so it is newer than t
		return false, nil
	}
	return deleted, err
}
