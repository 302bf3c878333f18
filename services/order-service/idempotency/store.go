// Package idempotency remembers checkout attempts made under a caller-chosen
// Idempotency-Key so a retried request cannot charge twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCharged    Status = "charged"
	StatusCompleted  Status = "completed"
)

// Record is what is known about an attempt.
type Record struct {
	Status    Status `json:"status"`
	PaymentID string `json:"paymentId,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
}

// Store claims and advances attempt records. Keys are scoped per principal
// so two users can never collide.
type Store interface {
	// Begin claims key for a new attempt. When the key is already held it
	// returns the existing record and started=false.
	Begin(ctx context.Context, principal, key string) (rec *Record, started bool, err error)
	MarkCharged(ctx context.Context, principal, key, paymentID string) error
	Complete(ctx context.Context, principal, key, paymentID, orderID string) error
	// Release drops the claim so the caller may try again.
	Release(ctx context.Context, principal, key string) error
}

const keyPrefix = "idem:checkout:"

// RedisStore keeps records in redis. A fresh claim lives for claimTTL so a
// crashed attempt frees its key quickly; once money moves the record is kept
// for ttl.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	claimTTL time.Duration
}

func NewRedisStore(client *redis.Client, ttl, claimTTL time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if claimTTL <= 0 || claimTTL > ttl {
		claimTTL = min(2*time.Minute, ttl)
	}
	return &RedisStore{client: client, ttl: ttl, claimTTL: claimTTL}
}

func redisKey(principal, key string) string {
	return keyPrefix + principal + ":" + key
}

func (s *RedisStore) Begin(ctx context.Context, principal, key string) (*Record, bool, error) {
	rec := &Record{Status: StatusInProgress}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, false, err
	}
	k := redisKey(principal, key)

	// Two rounds cover a record expiring between SETNX and GET.
	for i := 0; i < 2; i++ {
		ok, err := s.client.SetNX(ctx, k, data, s.claimTTL).Result()
		if err != nil {
			return nil, false, fmt.Errorf("claim idempotency key: %w", err)
		}
		if ok {
			return rec, true, nil
		}

		raw, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("read idempotency key: %w", err)
		}
		var existing Record
		if err := json.Unmarshal(raw, &existing); err != nil {
			return nil, false, fmt.Errorf("decode idempotency record: %w", err)
		}
		return &existing, false, nil
	}
	return nil, false, fmt.Errorf("idempotency key %q kept expiring", key)
}

func (s *RedisStore) MarkCharged(ctx context.Context, principal, key, paymentID string) error {
	return s.put(ctx, principal, key, Record{Status: StatusCharged, PaymentID: paymentID})
}

func (s *RedisStore) Complete(ctx context.Context, principal, key, paymentID, orderID string) error {
	return s.put(ctx, principal, key, Record{Status: StatusCompleted, PaymentID: paymentID, OrderID: orderID})
}

func (s *RedisStore) Release(ctx context.Context, principal, key string) error {
	return s.client.Del(ctx, redisKey(principal, key)).Err()
}

func (s *RedisStore) put(ctx context.Context, principal, key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey(principal, key), data, s.ttl).Err()
}
