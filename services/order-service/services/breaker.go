package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/metrics"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// errRejected marks a collaborator answering with a client error. The
// collaborator is healthy, so these never count against the breaker.
var errRejected = errors.New("rejected by collaborator")

// ClientOptions are shared by the HTTP collaborator clients.
type ClientOptions struct {
	Timeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens the
	// breaker. Zero disables it.
	BreakerFailures uint32
	BreakerCooldown time.Duration
	Metrics         *metrics.Registry
}

func (o ClientOptions) timeout(fallback time.Duration) time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return fallback
}

func newBreaker(name string, opts ClientOptions) *gobreaker.CircuitBreaker[any] {
	if opts.BreakerFailures == 0 {
		return nil
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// guarded runs fn through cb when one is configured. An open breaker fails
// immediately; nothing is retried.
func guarded[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	if cb == nil {
		return fn()
	}
	out, err := cb.Execute(func() (any, error) { return fn() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%s unavailable: %w", cb.Name(), err)
	}
	if out == nil {
		var zero T
		return zero, err
	}
	return out.(T), err
}
